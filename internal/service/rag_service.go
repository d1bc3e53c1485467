// Package service 包含了应用的业务逻辑层。
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"pizzeria-rag-go/internal/allergen"
	"pizzeria-rag-go/internal/config"
	"pizzeria-rag-go/internal/model"
	"pizzeria-rag-go/internal/registry"
	"pizzeria-rag-go/internal/repository"
	"pizzeria-rag-go/pkg/embedding"
	"pizzeria-rag-go/pkg/llm"
	"pizzeria-rag-go/pkg/log"
	"pizzeria-rag-go/pkg/storage"
)

// Retriever 检索聚合器，由 retrieval.Aggregator 实现。
type Retriever interface {
	GetContext(ctx context.Context, query string, documentIDs []string, maxChunks int) (*model.ContextResult, error)
	DetectCompany(query string) string
	DefaultMaxChunks() int
}

// StatsProvider 向量库统计，由 vectorstore.Store 实现。
type StatsProvider interface {
	Stats(ctx context.Context) model.StoreStats
}

// Deps RAGService 的依赖。Conversations、Objects、Processed 可为空。
type Deps struct {
	Retriever     Retriever
	Registry      registry.Registry
	Analyzer      *allergen.Analyzer
	LLM           llm.Client
	Embedder      embedding.Client
	Stats         StatsProvider
	Conversations repository.ConversationRepository
	Objects       storage.ObjectStore
	Processed     *storage.Processed
}

// RAGService 问答主流程：识别公司 → 检索上下文 → 上下文过敏原 → 用户过敏原 →
// 构建提示词 → 生成或离线回答 → 附加过敏原汇总。
type RAGService struct {
	Deps
	cfg config.LLMConfig
}

// NewRAGService 创建 RAGService。
func NewRAGService(cfg config.LLMConfig, deps Deps) *RAGService {
	if deps.Analyzer == nil {
		deps.Analyzer = allergen.NewAnalyzer(nil)
	}
	return &RAGService{Deps: deps, cfg: cfg}
}

// turn 一次问答在生成之前准备好的全部数据。
type turn struct {
	question      string
	documentIDs   []string
	detected      string
	userAllergens []string
	context       *model.ContextResult
	allergenInfo  model.AllergenInfo
	prompt        string
	history       []model.ChatMessage
	sessionID     string
}

// prepare 只有文档 ID 无效时返回错误。
func (s *RAGService) prepare(ctx context.Context, req model.AskRequest) (*turn, error) {
	t := &turn{question: strings.TrimSpace(req.Question), documentIDs: req.DocumentIDs}
	if t.question == "" {
		return nil, errors.New("question must not be empty")
	}
	for _, id := range t.documentIDs {
		if _, err := s.Registry.Get(id); err != nil {
			return nil, err
		}
	}

	if req.UserAllergens != nil {
		t.userAllergens = allergen.Normalize(req.UserAllergens)
	} else {
		t.userAllergens = s.Analyzer.ExtractUserAllergens(t.question)
	}

	if len(t.documentIDs) == 0 {
		if t.detected = s.Retriever.DetectCompany(t.question); t.detected != "" {
			t.documentIDs = []string{t.detected}
			log.Infof("[RAG] 问题中识别到公司: %s", t.detected)
		}
	}

	ctxResult, err := s.Retriever.GetContext(ctx, t.question, t.documentIDs, s.Retriever.DefaultMaxChunks())
	if err != nil {
		return nil, err
	}
	t.context = ctxResult
	t.allergenInfo = s.Analyzer.InfoForContext(nonEmptyGroups(ctxResult))
	t.prompt = s.CreatePrompt(t.question, ctxResult, t.allergenInfo, t.userAllergens)

	if req.SessionID != "" && s.Conversations != nil {
		t.sessionID = req.SessionID
		history, err := s.Conversations.GetConversationHistory(ctx, t.sessionID)
		if err != nil {
			log.Warnf("[RAG] 读取会话 %s 历史失败: %v", t.sessionID, err)
		}
		t.history = history
	}
	return t, nil
}

func (s *RAGService) messages(t *turn) []llm.Message {
	msgs := make([]llm.Message, 0, len(t.history)+2)
	msgs = append(msgs, llm.Message{Role: "system", Content: s.cfg.SystemPrompt})
	for _, m := range t.history {
		msgs = append(msgs, llm.Message{Role: m.Role, Content: m.Content})
	}
	return append(msgs, llm.Message{Role: "user", Content: t.prompt})
}

func (s *RAGService) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.cfg.Timeout > 0 {
		return context.WithTimeout(ctx, s.cfg.Timeout)
	}
	return context.WithCancel(ctx)
}

// QueryLLM 单次调用模型，不重试；超时取 llm.timeout。
func (s *RAGService) QueryLLM(ctx context.Context, prompt string) (string, error) {
	return s.chat(ctx, []llm.Message{
		{Role: "system", Content: s.cfg.SystemPrompt},
		{Role: "user", Content: prompt},
	})
}

func (s *RAGService) chat(ctx context.Context, msgs []llm.Message) (string, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	answer, err := s.LLM.Chat(ctx, msgs, nil)
	if err != nil {
		return "", fmt.Errorf("query llm: %w", err)
	}
	answer = strings.TrimSpace(answer)
	if answer == "" {
		return "", llm.ErrEmptyResponse
	}
	return answer, nil
}

// postProcess 由代码而非模型追加的过敏原汇总与兼容性分析。
func (s *RAGService) postProcess(t *turn) string {
	groups := nonEmptyGroups(t.context)
	out := s.Analyzer.Summary(t.allergenInfo, groups)
	if len(t.userAllergens) > 0 {
		out += s.Analyzer.SuggestAlternatives(t.userAllergens, groups)
		log.Infof("[RAG] 用户过敏原: %s", strings.Join(t.userAllergens, ", "))
	}
	return out
}

func (s *RAGService) result(t *turn, answer string, degraded bool) *model.AnswerResult {
	searched := t.context.SearchedDocuments
	if len(searched) == 0 {
		searched = t.documentIDs
	}
	if len(searched) == 0 {
		searched = s.Registry.AllDocumentIDs()
	}
	userAllergens := t.userAllergens
	if userAllergens == nil {
		userAllergens = []string{}
	}
	return &model.AnswerResult{
		Status:               "success",
		Question:             t.question,
		Answer:               answer,
		Degraded:             degraded,
		ContextUsed:          nonEmptyGroups(t.context),
		HasContext:           t.context.HasContext(),
		SearchedDocuments:    searched,
		DetectedDocument:     t.detected,
		HasMultipleCompanies: t.context.HasMultipleCompanies,
		CompaniesFound:       t.context.Companies(),
		AllergenInfo:         t.allergenInfo,
		UserAllergens:        userAllergens,
		SessionID:            t.sessionID,
	}
}

// errorResult 运行期错误不向用户暴露原始异常。
func errorResult(question string, userAllergens []string, err error) *model.AnswerResult {
	if userAllergens == nil {
		userAllergens = []string{}
	}
	return &model.AnswerResult{
		Status:            "error",
		Question:          question,
		Answer:            fmt.Sprintf("Désolé, une erreur s'est produite: %v", err),
		ContextUsed:       []model.ContextGroup{},
		SearchedDocuments: []string{},
		CompaniesFound:    []string{},
		AllergenInfo:      model.AllergenInfo{},
		UserAllergens:     userAllergens,
	}
}

// AnswerQuestion 模型失败时返回离线回答（Degraded=true，状态仍为 success）。
// 只有未知文档 ID 作为错误返回。
func (s *RAGService) AnswerQuestion(ctx context.Context, req model.AskRequest) (*model.AnswerResult, error) {
	start := time.Now()
	t, err := s.prepare(ctx, req)
	if err != nil {
		if errors.Is(err, registry.ErrDocumentNotFound) {
			return nil, err
		}
		log.Errorf("[RAG] 处理问题失败: %v", err)
		return errorResult(req.Question, req.UserAllergens, err), nil
	}

	degraded := false
	answer, err := s.chat(ctx, s.messages(t))
	if err != nil {
		log.Errorf("[RAG] 模型调用失败，使用离线回答: %v", err)
		answer = FallbackAnswer(t.question, t.context)
		degraded = true
	}
	answer += s.postProcess(t)

	s.remember(t, answer)
	log.Infof("[RAG] 回答完成, 公司 %v, 片段 %d, 降级 %t, 耗时 %v", t.context.Companies(), t.context.TotalSnippets(), degraded, time.Since(start))
	return s.result(t, answer, degraded), nil
}

// remember 使用后台上下文，请求取消后仍保存已生成的回答。
func (s *RAGService) remember(t *turn, answer string) {
	if t.sessionID == "" || s.Conversations == nil {
		return
	}
	now := time.Now()
	err := s.Conversations.AppendMessages(context.Background(), t.sessionID,
		model.ChatMessage{Role: "user", Content: t.question, Timestamp: now},
		model.ChatMessage{Role: "assistant", Content: answer, Timestamp: now},
	)
	if err != nil {
		log.Errorf("[RAG] 保存会话 %s 失败: %v", t.sessionID, err)
	}
}

// SystemStatus 模型与嵌入服务可达性、集合统计、每份文档的文件状态。
func (s *RAGService) SystemStatus(ctx context.Context) model.SystemStatus {
	status := model.SystemStatus{Documents: make(map[string]model.DocumentPresence)}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	status.ModelReachable = s.LLM != nil && s.LLM.Ping(pingCtx) == nil
	status.EmbeddingsReachable = s.Embedder != nil && s.Embedder.Ping(pingCtx) == nil
	if s.Stats != nil {
		status.CollectionStats = s.Stats.Stats(ctx)
	}

	for _, info := range s.Registry.List() {
		presence := model.DocumentPresence{Description: info.Description}
		if s.Objects != nil {
			pdf := info.PDFFile
			if pdf == "" {
				pdf = info.DocumentID + ".pdf"
			}
			ok, err := s.Objects.Exists(ctx, storage.RawKey(pdf))
			if err != nil {
				log.Warnf("[RAG] 检查 %s 原始文件失败: %v", info.DocumentID, err)
			}
			presence.PDFExists = ok
		}
		if s.Processed != nil {
			ok, err := s.Processed.Exists(ctx, info.DocumentID)
			if err != nil {
				log.Warnf("[RAG] 检查 %s 处理结果失败: %v", info.DocumentID, err)
			}
			presence.ProcessedExists = ok
		}
		status.Documents[info.DocumentID] = presence
	}
	return status
}
