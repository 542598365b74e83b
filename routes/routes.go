package routes

import (
	"github.com/gin-gonic/gin"

	"mslcrm/controllers"
	"mslcrm/middlewares"
)

func SetupRouter(chat *controllers.ChatController, tasks *controllers.TaskController) *gin.Engine {
	r := gin.Default()

	r.Use(middlewares.CORS())
	r.Use(middlewares.Logger())

	// チャットメッセージ送信
	r.POST("/chat", chat.HandleChat)

	// 過去の会話を取得
	r.GET("/chat/conversations", chat.GetConversations)
	r.GET("/chat/conversations/:id/messages", chat.GetConversationMessages)

	// 文書QA（外部RAGサービス）
	r.POST("/chat/document-qa", chat.HandleDocumentQA)

	// タスク
	r.POST("/tasks", tasks.CreateTask)
	r.GET("/tasks", tasks.GetTasks)
	r.POST("/tasks/update-status", tasks.UpdateTaskStatus)

	return r
}
