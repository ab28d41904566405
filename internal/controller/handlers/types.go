// Package handlers - команды бота и текстовые диалоги
package handlers

import (
	"go.uber.org/zap"

	"github.com/Freeeeeet/felanocare/internal/controller/common"
)

// Handlers содержит все зависимости для обработки команд
type Handlers struct {
	deps   *common.Deps
	logger *zap.Logger
}

// NewHandlers создаёт новый обработчик команд
func NewHandlers(deps *common.Deps) *Handlers {
	return &Handlers{
		deps:   deps,
		logger: deps.Logger,
	}
}
