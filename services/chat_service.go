package services

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"mslcrm/models"
)

// アシスタントの定型応答
const (
	taskCreatedReply  = "Task created successfully"
	taskFailedReply   = "Failed to create task. Please try again."
	completionFailure = "Sorry, I am unable to process your request right now."
)

// ChatService はチャット1往復のオーケストレーション。
// ユーザーメッセージの保存 → タスク判定 → タスク作成 or 生成AI呼び出し → 応答保存。
// 外部呼び出しの失敗はすべてここで定型メッセージに変換し、上位には返さない。
type ChatService struct {
	conversations ConversationStore
	tasks         TaskStore
	completion    CompletionService
	extractor     TaskExtractor
	now           func() time.Time

	// 会話ごとの楽観的トランスクリプト。
	// 会話を切り替えたときはストアから丸ごと再読込して置き換える。
	mu          sync.RWMutex
	transcripts map[string][]models.Message
}

func NewChatService(
	conversations ConversationStore,
	tasks TaskStore,
	completion CompletionService,
	extractor TaskExtractor,
) *ChatService {
	return &ChatService{
		conversations: conversations,
		tasks:         tasks,
		completion:    completion,
		extractor:     extractor,
		now:           time.Now,
		transcripts:   make(map[string][]models.Message),
	}
}

type SendMessageInput struct {
	ConversationID string // 空なら新しい会話を開始する
	UserID         string
	Message        string
}

type SendMessageOutput struct {
	ConversationID   string
	UserMessage      models.Message
	AssistantMessage models.Message
}

func (s *ChatService) Send(ctx context.Context, in SendMessageInput) (*SendMessageOutput, error) {
	// 空白だけのメッセージも送信対象にしない
	if strings.TrimSpace(in.Message) == "" {
		return nil, fmt.Errorf("message is empty")
	}

	// 会話IDがなければここで採番する（保存より先）
	conversationID := in.ConversationID
	if conversationID == "" {
		conversationID = uuid.New().String()
	}

	userMsg := models.Message{
		ID:             uuid.New().String(),
		ConversationID: conversationID,
		Role:           models.RoleUser,
		Content:        in.Message,
		Timestamp:      s.now(),
	}

	// 楽観的更新：保存を待たずにトランスクリプトへ追加
	s.appendToTranscript(userMsg)

	// ユーザーメッセージの保存失敗はログのみでフローを止めない
	if err := s.conversations.Append(ctx, userMsg); err != nil {
		log.Printf("Error saving user message: %v", err)
	}

	var replyContent string
	if IsTaskCreationPrompt(in.Message) {
		replyContent = s.handleTaskCreation(ctx, in.Message, in.UserID)
	} else {
		replyContent = s.handleCompletion(ctx, in.Message)
	}

	assistantMsg := models.Message{
		ID:             uuid.New().String(),
		ConversationID: conversationID,
		Role:           models.RoleAssistant,
		Content:        replyContent,
		Timestamp:      s.now(),
	}

	s.appendToTranscript(assistantMsg)

	if err := s.conversations.Append(ctx, assistantMsg); err != nil {
		log.Printf("Error saving assistant message: %v", err)
	}

	return &SendMessageOutput{
		ConversationID:   conversationID,
		UserMessage:      userMsg,
		AssistantMessage: assistantMsg,
	}, nil
}

func (s *ChatService) handleTaskCreation(ctx context.Context, message string, userID string) string {
	draft := s.extractor.Extract(message, userID)

	task, err := s.tasks.Insert(ctx, draft)
	if err != nil {
		log.Printf("Error creating task: %v", err)
		return taskFailedReply
	}

	log.Printf("Task created: id=%s due=%s", task.ID, task.DueDate)
	return taskCreatedReply
}

func (s *ChatService) handleCompletion(ctx context.Context, message string) string {
	text, err := s.completion.Complete(ctx, message)
	if err != nil {
		log.Printf("Error calling completion service: %v", err)
		return completionFailure
	}
	return FormatResponseWithDashes(text)
}

// History はストアから会話を読み直し、メモリ上のトランスクリプトを丸ごと置き換える
func (s *ChatService) History(ctx context.Context, conversationID string) ([]models.Message, error) {
	messages, err := s.conversations.ListByConversation(ctx, conversationID)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.transcripts[conversationID] = append([]models.Message(nil), messages...)
	s.mu.Unlock()

	return messages, nil
}

// Transcript は現在のメモリ上のトランスクリプトのコピーを返す
func (s *ChatService) Transcript(conversationID string) []models.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.Message(nil), s.transcripts[conversationID]...)
}

// ListConversations は履歴一覧用に会話ごとのサマリーを新しい順で返す。
// タイトルは最初のユーザーメッセージ。
func (s *ChatService) ListConversations(ctx context.Context) ([]models.ConversationSummary, error) {
	messages, err := s.conversations.ListAll(ctx)
	if err != nil {
		return nil, err
	}

	groups := make(map[string][]models.Message)
	for _, msg := range messages {
		groups[msg.ConversationID] = append(groups[msg.ConversationID], msg)
	}

	summaries := make([]models.ConversationSummary, 0, len(groups))
	for id, msgs := range groups {
		title := ""
		for _, msg := range msgs {
			if msg.Role == models.RoleUser {
				title = msg.Content
				break
			}
		}
		if title == "" {
			short := id
			if len(short) > 4 {
				short = short[:4]
			}
			title = "Conversation " + short
		}

		last := msgs[len(msgs)-1]
		summaries = append(summaries, models.ConversationSummary{
			ConversationID: id,
			Title:          title,
			LastMessage:    last.Content,
			Timestamp:      last.Timestamp,
		})
	}

	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].Timestamp.After(summaries[j].Timestamp)
	})

	return summaries, nil
}

func (s *ChatService) appendToTranscript(msg models.Message) {
	s.mu.Lock()
	s.transcripts[msg.ConversationID] = append(s.transcripts[msg.ConversationID], msg)
	s.mu.Unlock()
}
