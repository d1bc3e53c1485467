package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"pizzeria-rag-go/internal/model"
	"pizzeria-rag-go/internal/registry"
	"pizzeria-rag-go/pkg/llm"
	"pizzeria-rag-go/pkg/log"
)

// StreamAnswer 与 AnswerQuestion 相同的流程，模型输出逐块以 {"chunk": "..."} 写出，
// 随后写出过敏原汇总，最后发送完成通知。模型未输出任何内容就失败时改为发送离线回答。
func (s *RAGService) StreamAnswer(ctx context.Context, req model.AskRequest, out llm.MessageWriter, shouldStop func() bool) (*model.AnswerResult, error) {
	t, err := s.prepare(ctx, req)
	if err != nil {
		if errors.Is(err, registry.ErrDocumentNotFound) {
			return nil, err
		}
		res := errorResult(req.Question, req.UserAllergens, err)
		_ = writeChunk(out, res.Answer)
		sendCompletion(out)
		return res, nil
	}

	interceptor := &chunkInterceptor{out: out, shouldStop: shouldStop}
	streamCtx, cancel := s.withTimeout(ctx)
	err = s.LLM.StreamChat(streamCtx, s.messages(t), nil, interceptor)
	cancel()

	degraded := false
	if err != nil || interceptor.answer.Len() == 0 {
		if err == nil {
			err = llm.ErrEmptyResponse
		}
		if interceptor.answer.Len() == 0 {
			log.Errorf("[RAG] 流式调用失败，使用离线回答: %v", err)
			degraded = true
			_ = interceptor.WriteMessage(websocket.TextMessage, []byte(FallbackAnswer(t.question, t.context)))
		} else {
			log.Warnf("[RAG] 流式输出中断: %v", err)
		}
	}
	if extra := s.postProcess(t); extra != "" {
		_ = interceptor.WriteMessage(websocket.TextMessage, []byte(extra))
	}
	sendCompletion(out)

	answer := interceptor.answer.String()
	s.remember(t, answer)
	return s.result(t, answer, degraded), nil
}

// chunkInterceptor 记录完整回答，并把原始分块包装成 JSON 帧。
type chunkInterceptor struct {
	out        llm.MessageWriter
	answer     strings.Builder
	shouldStop func() bool
}

// WriteMessage 满足 llm.MessageWriter 接口。
func (w *chunkInterceptor) WriteMessage(_ int, data []byte) error {
	if w.shouldStop != nil && w.shouldStop() {
		return nil
	}
	w.answer.Write(data)
	return writeChunk(w.out, string(data))
}

func writeChunk(out llm.MessageWriter, chunk string) error {
	b, _ := json.Marshal(map[string]string{"chunk": chunk})
	return out.WriteMessage(websocket.TextMessage, b)
}

// sendCompletion 发送完成通知 JSON
func sendCompletion(out llm.MessageWriter) {
	notif := map[string]any{
		"type":      "completion",
		"status":    "finished",
		"message":   "Réponse terminée",
		"timestamp": time.Now().UnixMilli(),
	}
	b, _ := json.Marshal(notif)
	_ = out.WriteMessage(websocket.TextMessage, b)
}
