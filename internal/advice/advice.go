// Package advice - прокси к внешним сервисам подсказок: AI-ассистент
// (OpenAI-совместимый chat completions) и справочник лекарств OpenFDA.
package advice

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Freeeeeet/felanocare/internal/circuitbreaker"
	"github.com/Freeeeeet/felanocare/internal/ledger"
	"github.com/Freeeeeet/felanocare/internal/model"
)

const (
	defaultPrompt = "You are a helpful assistant."
	temperature   = 0.7
	maxTokens     = 300
)

// prompts - системные подсказки по модулю и возрастной группе
var prompts = map[string]map[model.AgeCategory]string{
	"booking": {
		model.AgeYouth:  "You are a friendly teen healthcare assistant.",
		model.AgeAdult:  "You are a professional medical booking assistant.",
		model.AgeSenior: "You are a caring senior healthcare concierge.",
	},
	"epharmacy": {
		model.AgeYouth:  "Suggest easy-to-take medicines for teens.",
		model.AgeAdult:  "Provide prescription-level medicine advice for adults.",
		model.AgeSenior: "Recommend gentle medicines suited for seniors.",
	},
	"dietetics": {
		model.AgeYouth:  "Offer simple, fun nutrition tips for young users.",
		model.AgeAdult:  "Provide balanced meal plans tailored for adults.",
		model.AgeSenior: "Suggest gentle, senior-friendly dietary advice.",
	},
	"mental-health": {
		model.AgeYouth:  "You are a supportive counselor for teenage concerns.",
		model.AgeAdult:  "You are a professional mental health assistant for adults.",
		model.AgeSenior: "You are a compassionate mental health guide for seniors.",
	},
	"herbal": {
		model.AgeYouth:  "Recommend safe, mild herbal remedies for teens.",
		model.AgeAdult:  "Provide herbal remedy suggestions with cautions for adults.",
		model.AgeSenior: "Advise on gentle herbal remedies suited for seniors.",
	},
}

// SystemPrompt выбирает подсказку; неизвестный модуль получает общую
func SystemPrompt(module string, age model.AgeCategory) string {
	if age == "" {
		age = model.AgeAdult
	}
	if p, ok := prompts[module][age]; ok {
		return p
	}
	return defaultPrompt
}

// UpstreamError - внешний сервис ответил ошибкой
type UpstreamError struct {
	Service string
	Status  int
	Message string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s: upstream status %d: %s", e.Service, e.Status, e.Message)
}

// clientError - ответ 4xx не говорит о неисправности сервиса и не размыкает цепь
func clientError(err error) bool {
	var ue *UpstreamError
	return errors.As(err, &ue) && ue.Status >= 400 && ue.Status < 500 && ue.Status != http.StatusTooManyRequests
}

func newBreaker(name string, logger *zap.Logger) (*circuitbreaker.CircuitBreaker, error) {
	cfg := circuitbreaker.DefaultConfig(name)
	cfg.IsSuccessful = func(err error) bool {
		return err == nil || clientError(err)
	}
	return circuitbreaker.New(cfg, logger)
}

type AdviceRequest struct {
	Module      string            `json:"module"`
	AgeCategory model.AgeCategory `json:"age_category"`
	UserText    string            `json:"input"`
}

type AdviceReply struct {
	Reply string `json:"reply"`
}

type AdviceConfig struct {
	BaseURL string
	APIKey  string
	Model   string
}

// AdviceClient - клиент chat completions
type AdviceClient struct {
	cfg     AdviceConfig
	http    *http.Client
	breaker *circuitbreaker.CircuitBreaker
	logger  *zap.Logger
}

func NewAdviceClient(cfg AdviceConfig, logger *zap.Logger) (*AdviceClient, error) {
	if cfg.Model == "" {
		cfg.Model = "gpt-3.5-turbo"
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	breaker, err := newBreaker("ai-assistant", logger)
	if err != nil {
		return nil, err
	}

	return &AdviceClient{
		cfg:     cfg,
		http:    &http.Client{Timeout: 30 * time.Second},
		breaker: breaker,
		logger:  logger,
	}, nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

type apiError struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Ask отправляет вопрос пользователя с подсказкой по модулю и возрасту
func (c *AdviceClient) Ask(ctx context.Context, req AdviceRequest) (AdviceReply, error) {
	text := strings.TrimSpace(req.UserText)
	if text == "" {
		return AdviceReply{}, &ledger.ValidationError{Field: "input", Reason: "required"}
	}

	body := chatRequest{
		Model: c.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: SystemPrompt(req.Module, req.AgeCategory)},
			{Role: "user", Content: text},
		},
		Temperature: temperature,
		MaxTokens:   maxTokens,
	}

	resp, err := circuitbreaker.Do(ctx, c.breaker, func(ctx context.Context) (*chatResponse, error) {
		var out chatResponse
		if err := c.post(ctx, "/chat/completions", body, &out); err != nil {
			return nil, err
		}
		return &out, nil
	})
	if err != nil {
		c.logger.Warn("AI assistant request failed", zap.String("module", req.Module), zap.Error(err))
		return AdviceReply{}, err
	}

	var reply string
	if len(resp.Choices) > 0 {
		reply = strings.TrimSpace(resp.Choices[0].Message.Content)
	}
	return AdviceReply{Reply: reply}, nil
}

func (c *AdviceClient) post(ctx context.Context, path string, in, out any) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("call ai assistant: %w", err)
	}
	defer resp.Body.Close()

	return decode(resp, "ai-assistant", "AI assistant error", out)
}

// decode разбирает успешный ответ в out, ошибочный - в UpstreamError
func decode(resp *http.Response, service, fallback string, out any) error {
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return fmt.Errorf("read %s response: %w", service, err)
	}

	if resp.StatusCode >= 300 {
		var e apiError
		msg := fallback
		if json.Unmarshal(raw, &e) == nil && e.Error.Message != "" {
			msg = e.Error.Message
		}
		return &UpstreamError{Service: service, Status: resp.StatusCode, Message: msg}
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode %s response: %w", service, err)
	}
	return nil
}
