package advice

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Freeeeeet/felanocare/internal/circuitbreaker"
	"github.com/Freeeeeet/felanocare/internal/ledger"
)

const drugSearchLimit = 5

// DrugRecord - запись этикетки OpenFDA как есть
type DrugRecord = json.RawMessage

type drugResponse struct {
	Results []DrugRecord `json:"results"`
}

// DrugClient ищет этикетки лекарств в OpenFDA
type DrugClient struct {
	baseURL string
	http    *http.Client
	breaker *circuitbreaker.CircuitBreaker
	logger  *zap.Logger
}

func NewDrugClient(baseURL string, logger *zap.Logger) (*DrugClient, error) {
	breaker, err := newBreaker("openfda", logger)
	if err != nil {
		return nil, err
	}
	return &DrugClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 15 * time.Second},
		breaker: breaker,
		logger:  logger,
	}, nil
}

// Search возвращает не больше пяти записей; пустой результат - не ошибка
func (c *DrugClient) Search(ctx context.Context, term string) ([]DrugRecord, error) {
	term = strings.TrimSpace(term)
	if term == "" {
		return nil, &ledger.ValidationError{Field: "term", Reason: "a non-empty term is required"}
	}

	records, err := circuitbreaker.Do(ctx, c.breaker, func(ctx context.Context) ([]DrugRecord, error) {
		return c.search(ctx, term)
	})
	if err != nil {
		c.logger.Warn("Drug search failed", zap.String("term", term), zap.Error(err))
		return nil, err
	}
	if records == nil {
		records = []DrugRecord{}
	}
	return records, nil
}

func (c *DrugClient) search(ctx context.Context, term string) ([]DrugRecord, error) {
	q := url.Values{}
	q.Set("search", term)
	q.Set("limit", fmt.Sprint(drugSearchLimit))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/drug/label.json?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call openfda: %w", err)
	}
	defer resp.Body.Close()

	// OpenFDA отвечает 404, если ничего не найдено
	if resp.StatusCode == http.StatusNotFound {
		return []DrugRecord{}, nil
	}

	var out drugResponse
	if err := decode(resp, "openfda", "OpenFDA API error", &out); err != nil {
		return nil, err
	}
	return out.Results, nil
}
