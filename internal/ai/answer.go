package ai

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/siteinsight/internal/metrics"
	"github.com/xxxsen/siteinsight/internal/model"
	appErr "github.com/xxxsen/siteinsight/internal/pkg/errors"
)

const (
	answerSystemPrompt = `You answer questions about a company using only the website excerpts provided in the user message.
- Ground every statement in the excerpts. Do not use outside knowledge.
- If the excerpts do not contain the answer, reply exactly: "Not available on the website."
- Be concise and conversational.`
	NotAvailableAnswer = "Not available on the website."
)

var answerTemperature = float32(0.3)

// Answer generates a grounded reply to question from the retrieved chunks, which
// must be ordered nearest first. Only the most recent HistoryTurns turns are sent.
func (m *Manager) Answer(ctx context.Context, question string, chunks []model.ScoredChunk, history []model.Turn) (string, error) {
	start := time.Now()
	defer metrics.ObserveStage("answer", start)

	if m.answer == nil {
		return "", appErr.Wrap(appErr.ErrAnswer, ErrUnavailable)
	}
	if len(chunks) == 0 {
		return "", fmt.Errorf("%w: no context retrieved", appErr.ErrNotFound)
	}
	req := BuildAnswerRequest(question, chunks, history, m.cfg.HistoryTurns)
	text, err := m.generateText(ctx, m.answer, req)
	metrics.AIRequestsTotal.WithLabelValues("answer", metrics.Result(err)).Inc()
	if err != nil {
		return "", appErr.Wrap(appErr.ErrAnswer, err)
	}
	logutil.GetLogger(ctx).Debug("answer generated",
		zap.Int("sources", len(chunks)),
		zap.Int("history", len(history)),
		zap.Duration("cost", time.Since(start)),
	)
	return text, nil
}

func BuildAnswerRequest(question string, chunks []model.ScoredChunk, history []model.Turn, historyTurns int) *Request {
	if historyTurns > 0 && len(history) > historyTurns {
		history = history[len(history)-historyTurns:]
	}
	msgs := make([]Message, 0, len(history)+1)
	for _, turn := range history {
		msgs = append(msgs, Message{Role: turn.Role, Content: turn.Content})
	}

	var sb strings.Builder
	sb.WriteString("Website excerpts (most relevant first):\n")
	for i, c := range chunks {
		fmt.Fprintf(&sb, "\n[%d]\n%s\n", i+1, strings.TrimSpace(c.Text))
	}
	fmt.Fprintf(&sb, "\nQuestion: %s", strings.TrimSpace(question))
	msgs = append(msgs, Message{Role: RoleUser, Content: sb.String()})

	return &Request{
		System:      answerSystemPrompt,
		Messages:    msgs,
		Temperature: &answerTemperature,
	}
}
