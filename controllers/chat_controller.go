package controllers

import (
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"mslcrm/services"
)

type ChatController struct {
	chat  *services.ChatService
	docQA *services.DocQAService
}

func NewChatController(chat *services.ChatService, docQA *services.DocQAService) *ChatController {
	return &ChatController{chat: chat, docQA: docQA}
}

func (ctrl *ChatController) HandleChat(c *gin.Context) {
	var request struct {
		ConversationID string `json:"conversation_id"`
		UserID         string `json:"user_id"`
		Message        string `json:"message" binding:"required"`
	}

	if err := c.BindJSON(&request); err != nil {
		log.Printf("Error binding JSON: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "Message is required"})
		return
	}

	out, err := ctrl.chat.Send(c.Request.Context(), services.SendMessageInput{
		ConversationID: request.ConversationID,
		UserID:         request.UserID,
		Message:        request.Message,
	})
	if err != nil {
		log.Printf("Error handling chat message: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to process message"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"conversation_id": out.ConversationID,
		"reply":           out.AssistantMessage.Content,
		"id":              out.AssistantMessage.ID,
		"timestamp":       out.AssistantMessage.Timestamp.Format(time.RFC3339),
	})
}

// 過去の会話一覧を取得
func (ctrl *ChatController) GetConversations(c *gin.Context) {
	conversations, err := ctrl.chat.ListConversations(c.Request.Context())
	if err != nil {
		log.Printf("Error fetching conversations: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch conversations"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"conversations": conversations})
}

// 指定した会話のメッセージを古い順で取得
func (ctrl *ChatController) GetConversationMessages(c *gin.Context) {
	conversationID := c.Param("id")
	if conversationID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "conversation id is required"})
		return
	}

	messages, err := ctrl.chat.History(c.Request.Context(), conversationID)
	if err != nil {
		log.Printf("Error loading chat history: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load chat history"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"messages": messages})
}

// 外部RAGサービスへの文書QA
func (ctrl *ChatController) HandleDocumentQA(c *gin.Context) {
	var request struct {
		Question string   `json:"question" binding:"required"`
		PDFPaths []string `json:"pdf_paths"`
	}

	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Question is required"})
		return
	}

	answer, err := ctrl.docQA.Ask(c.Request.Context(), request.Question, request.PDFPaths)
	if err != nil {
		log.Printf("Error querying RAG service: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Unable to fetch data from the server."})
		return
	}

	c.JSON(http.StatusOK, gin.H{"answer": answer})
}
