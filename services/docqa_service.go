package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-resty/resty/v2"
)

type DocQAResponse struct {
	Answer string `json:"answer"`
	Error  string `json:"error"`
}

// DocQAService は外部のRAGサービスに文書QAを委譲する
type DocQAService struct {
	client   *resty.Client
	endpoint string
}

func NewDocQAService(endpoint string) *DocQAService {
	return &DocQAService{
		client:   resty.New(),
		endpoint: endpoint,
	}
}

func (s *DocQAService) Ask(ctx context.Context, question string, pdfPaths []string) (string, error) {
	requestBody := map[string]interface{}{
		"question":  question,
		"pdf_paths": pdfPaths,
	}

	resp, err := s.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(requestBody).
		Post(s.endpoint + "/query")

	if err != nil {
		return "", err
	}

	if resp.StatusCode() != http.StatusOK {
		return "", fmt.Errorf("failed to query RAG service, status: %d", resp.StatusCode())
	}

	var result DocQAResponse
	if err := json.Unmarshal(resp.Body(), &result); err != nil {
		return "", fmt.Errorf("failed to parse response: %v", err)
	}

	if result.Answer == "" {
		if result.Error != "" {
			return "", fmt.Errorf("RAG service error: %s", result.Error)
		}
		return "", fmt.Errorf("no answer in response")
	}

	return result.Answer, nil
}
