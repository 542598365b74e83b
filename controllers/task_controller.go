package controllers

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"mslcrm/models"
	"mslcrm/services"
)

type TaskController struct {
	tasks *services.PostgresTaskStore
}

func NewTaskController(tasks *services.PostgresTaskStore) *TaskController {
	return &TaskController{tasks: tasks}
}

// タスクフォームからの直接作成
func (ctrl *TaskController) CreateTask(c *gin.Context) {
	var request struct {
		TaskDescription string `json:"task_description" binding:"required"`
		TaskRequestedBy string `json:"task_requested_by"`
		TaskAssignedTo  string `json:"task_assigned_to" binding:"required"`
		TaskCreatedBy   string `json:"task_created_by" binding:"required"`
		CustomerID      string `json:"customer_id"`
		DueDate         string `json:"due_date" binding:"required"`
		Status          string `json:"status"`
	}

	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if request.Status == "" {
		request.Status = models.TaskStatusPending
	}
	if request.TaskRequestedBy == "" {
		request.TaskRequestedBy = "User"
	}

	task, err := ctrl.tasks.Insert(c.Request.Context(), models.TaskDraft{
		TaskDescription: request.TaskDescription,
		TaskRequestedBy: request.TaskRequestedBy,
		TaskAssignedTo:  request.TaskAssignedTo,
		TaskCreatedBy:   request.TaskCreatedBy,
		CustomerID:      request.CustomerID,
		DueDate:         request.DueDate,
		Status:          request.Status,
	})
	if err != nil {
		log.Printf("Error creating task: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create task"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"task": task})
}

func (ctrl *TaskController) GetTasks(c *gin.Context) {
	assignedTo := c.Query("assigned_to")

	tasks, err := ctrl.tasks.List(c.Request.Context(), assignedTo)
	if err != nil {
		log.Printf("Error fetching tasks: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch tasks"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"tasks": tasks})
}

func (ctrl *TaskController) UpdateTaskStatus(c *gin.Context) {
	var request struct {
		ID     string `json:"id" binding:"required"`
		Status string `json:"status" binding:"required"`
	}

	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	switch request.Status {
	case models.TaskStatusPending, models.TaskStatusInProgress, models.TaskStatusCompleted, models.TaskStatusCancelled:
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid status"})
		return
	}

	if err := ctrl.tasks.UpdateStatus(c.Request.Context(), request.ID, request.Status); err != nil {
		log.Printf("Error updating task status: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update task status"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Task updated successfully"})
}
