// cmd/reminders/main.go
package main

import (
	"context"
	"log"
	"time"

	"mslcrm/config"
	"mslcrm/services"
)

// 期限が近い・過ぎたタスクのダイジェストを定期的に出力するバッチ
func main() {
	// 数回リトライを試みる
	var store *services.PostgresTaskStore
	var err error

	for i := 0; i < 3; i++ {
		store, err = services.NewPostgresTaskStore(config.GetPostgresURI())
		if err == nil {
			break
		}
		log.Printf("Attempt %d: Failed to connect to task store: %v", i+1, err)
		time.Sleep(2 * time.Second)
	}

	if err != nil {
		log.Fatalf("Failed to connect to task store after retries: %v", err)
	}
	defer store.Close()

	log.Println("Starting task reminder service...")

	// 初回実行
	if err := logDueTasks(store); err != nil {
		log.Printf("Error in initial run: %v", err)
	}

	// 定期実行の設定
	ticker := time.NewTicker(1 * time.Hour)
	defer ticker.Stop()

	for range ticker.C {
		if err := logDueTasks(store); err != nil {
			log.Printf("Error checking due tasks: %v", err)
		}
	}
}

func logDueTasks(store *services.PostgresTaskStore) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	today := time.Now().UTC().Format("2006-01-02")
	weekAhead := time.Now().UTC().AddDate(0, 0, 7).Format("2006-01-02")

	tasks, err := store.ListDueBefore(ctx, weekAhead)
	if err != nil {
		return err
	}

	if len(tasks) == 0 {
		log.Println("No tasks due within 7 days")
		return nil
	}

	for _, task := range tasks {
		state := "due soon"
		if task.DueDate < today {
			state = "OVERDUE"
		}
		log.Printf("[%s] %s (assigned to %s, due %s, status %s)",
			state, task.TaskDescription, task.TaskAssignedTo, task.DueDate, task.Status)
	}

	log.Printf("Reminder digest completed: %d task(s)", len(tasks))
	return nil
}
