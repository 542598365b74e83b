package main

import (
	"log"

	"github.com/gin-gonic/gin"

	"mslcrm/config"
	"mslcrm/controllers"
	"mslcrm/routes"
	"mslcrm/services"
)

func main() {
	gin.SetMode(gin.ReleaseMode)

	conversationStore, err := services.NewDynamoConversationStore(
		config.GetDynamoEndpoint(),
		config.GetDynamoRegion(),
	)
	if err != nil {
		log.Fatalf("Failed to initialize conversation store: %v", err)
	}

	taskStore, err := services.NewPostgresTaskStore(config.GetPostgresURI())
	if err != nil {
		log.Fatalf("Failed to initialize task store: %v", err)
	}
	defer taskStore.Close()

	// 生成AIのバックエンドを選択
	var completion services.CompletionService
	switch config.GetCompletionBackend() {
	case "openai":
		completion = services.NewOpenAIService(config.GetOpenAIKey(), config.GetOpenAIModel())
	default:
		completion = services.NewGeminiService(config.GetGeminiKey(), config.GetGeminiModel())
	}

	chatService := services.NewChatService(
		conversationStore,
		taskStore,
		completion,
		services.NewPatternTaskExtractor(),
	)

	chatController := controllers.NewChatController(
		chatService,
		services.NewDocQAService(config.GetRAGEndpoint()),
	)
	taskController := controllers.NewTaskController(taskStore)

	router := routes.SetupRouter(chatController, taskController)

	port := config.GetPort()
	log.Printf("Server starting on port %s", port)
	if err := router.Run(port); err != nil {
		log.Fatalf("Server failed to start: %v", err)
	}
}
