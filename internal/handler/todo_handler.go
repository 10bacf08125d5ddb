package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prperemyshlev/todo-session/internal/domain"
	"github.com/prperemyshlev/todo-session/internal/dto"
	"github.com/prperemyshlev/todo-session/internal/service"
	"go.uber.org/zap"
)

// TodoHandler serves the caller's todos
type TodoHandler struct {
	todos  service.TodoService
	logger *zap.Logger
}

func NewTodoHandler(todos service.TodoService, logger *zap.Logger) *TodoHandler {
	return &TodoHandler{todos: todos, logger: logger}
}

func (h *TodoHandler) List(c *gin.Context) {
	todos, err := h.todos.List(c.Request.Context(), currentUserID(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	response := dto.TodoListResponse{Todos: make([]dto.TodoResponse, 0, len(todos))}
	for _, todo := range todos {
		response.Todos = append(response.Todos, todoResponse(todo))
	}
	c.JSON(http.StatusOK, response)
}

func (h *TodoHandler) Create(c *gin.Context) {
	var req dto.CreateTodoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	todo, err := h.todos.Create(c.Request.Context(), currentUserID(c), req.Title)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, todoResponse(todo))
}

func (h *TodoHandler) Get(c *gin.Context) {
	todo, err := h.todos.Get(c.Request.Context(), currentUserID(c), c.Param("id"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, todoResponse(todo))
}

func (h *TodoHandler) Update(c *gin.Context) {
	var req dto.UpdateTodoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	update := domain.TodoUpdate{Title: req.Title, Completed: req.Completed}
	todo, err := h.todos.Update(c.Request.Context(), currentUserID(c), c.Param("id"), update)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, todoResponse(todo))
}

func (h *TodoHandler) Delete(c *gin.Context) {
	if err := h.todos.Delete(c.Request.Context(), currentUserID(c), c.Param("id")); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func todoResponse(t *domain.Todo) dto.TodoResponse {
	return dto.TodoResponse{
		ID:        t.ID,
		Title:     t.Title,
		Completed: t.Completed,
		CreatedAt: t.CreatedAt.UTC().Format(time.RFC3339Nano),
		UserID:    t.UserID,
	}
}
