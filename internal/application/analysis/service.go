package analysis

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/bryanwahyu/newslens/internal/application"
	domain "github.com/bryanwahyu/newslens/internal/domain/analysis"
	audit "github.com/bryanwahyu/newslens/internal/domain/audit"
	auth "github.com/bryanwahyu/newslens/internal/domain/auth"
	news "github.com/bryanwahyu/newslens/internal/domain/news"
)

// Service implements use-cases untuk AI analysis.
// Safe for concurrent use.
type Service struct {
	Repo     domain.Repository
	Articles news.Repository
	Users    auth.Repository
	Client   domain.Client
	Archive  news.ArchiveStore // nil when archiving is disabled
	Errors   audit.Repository
	Clock    application.Clock
	Log      *zap.Logger
}

// AnalyzeResult wraps the analysis with a flag telling the caller whether an
// existing row was returned instead of a fresh one.
type AnalyzeResult struct {
	Analysis *domain.Analysis `json:"analysis"`
	Existing bool             `json:"existing"`
}

// AnalyzeArticle runs the LLM over one article for one user. If the user has
// already analyzed the article the stored row is returned and no model call
// happens. Concurrent duplicates lose the insert race and read back the
// winner.
func (s *Service) AnalyzeArticle(ctx context.Context, userID, articleID string) (AnalyzeResult, error) {
	article, err := s.Articles.GetArticle(ctx, news.ArticleID(articleID), userID)
	if err != nil {
		return AnalyzeResult{}, err
	}

	if existing, err := s.Repo.GetByUserArticle(ctx, userID, articleID); err == nil {
		return AnalyzeResult{Analysis: existing, Existing: true}, nil
	} else if !errors.Is(err, domain.ErrNotFound) {
		return AnalyzeResult{}, err
	}

	started := s.Clock.Now()
	result, raw, err := s.Client.AnalyzeArticle(ctx, article.Title, article.Description, article.Content)
	if err != nil {
		s.recordFailure(ctx, articleID, err)
		return AnalyzeResult{}, err
	}
	elapsed := s.Clock.Now().Sub(started).Seconds()

	a := &domain.Analysis{
		ID:               domain.AnalysisID(uuid.New().String()),
		UserID:           userID,
		ArticleID:        articleID,
		Bias:             result.Bias,
		BiasScore:        result.Bias.Score(),
		BiasConfidence:   result.BiasConfidence,
		BiasReasoning:    result.BiasReasoning,
		Positive:         result.Positive,
		Negative:         result.Negative,
		Neutral:          result.Neutral,
		OverallSentiment: result.OverallSentiment,
		EmotionalTone:    result.EmotionalTone,
		PrimaryTopics:    result.PrimaryTopics,
		TopicWeights:     result.TopicWeights,
		KeyThemes:        result.KeyThemes,
		Controversy:      result.Controversy,
		Version:          "1.0",
		ProcessingSecs:   elapsed,
		RawResponse:      raw,
		CreatedAt:        s.Clock.Now(),
		ArticleTitle:     article.Title,
		ArticleCategory:  article.CategorySlug,
	}

	if err := s.Repo.Save(ctx, a); err != nil {
		if errors.Is(err, domain.ErrDuplicateAnalysis) {
			// lost the race; the stored row is the answer
			winner, gerr := s.Repo.GetByUserArticle(ctx, userID, articleID)
			if gerr != nil {
				return AnalyzeResult{}, gerr
			}
			return AnalyzeResult{Analysis: winner, Existing: true}, nil
		}
		return AnalyzeResult{}, err
	}

	if err := s.Users.BumpAnalysisStats(ctx, userID, a.CreatedAt); err != nil {
		s.Log.Warn("profile stats not bumped", zap.String("user", userID), zap.Error(err))
	}
	s.archiveRaw(ctx, string(a.ID), raw)

	s.Log.Info("article analyzed",
		zap.String("article", articleID),
		zap.String("bias", string(a.Bias)),
		zap.Float64("controversy", a.Controversy),
		zap.Float64("seconds", elapsed),
	)
	return AnalyzeResult{Analysis: a}, nil
}

// Get returns one analysis. Only the owner or an admin may read it.
func (s *Service) Get(ctx context.Context, requester *auth.User, id domain.AnalysisID) (*domain.Analysis, error) {
	a, err := s.Repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if a.UserID != requester.ID && !requester.IsAdmin {
		return nil, domain.ErrForbidden
	}
	return a, nil
}

// maxPageSize bounds one page of results.
const maxPageSize = 100

// List returns one page of the user's analyses.
func (s *Service) List(ctx context.Context, userID string, f domain.ListFilter, page, pageSize int) (domain.PaginatedResult, error) {
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	return s.Repo.Paginate(ctx, userID, f, page, pageSize)
}

// Recent returns the user's latest analyses.
func (s *Service) Recent(ctx context.Context, userID string, limit int) ([]*domain.Analysis, error) {
	if limit <= 0 || limit > 50 {
		limit = 10
	}
	return s.Repo.ListForUser(ctx, userID, limit)
}

// ControversyThreshold marks an analysis as controversial.
const ControversyThreshold = 0.6

// Controversial returns the user's analyses at or above the controversy
// threshold, most controversial first.
func (s *Service) Controversial(ctx context.Context, userID string, limit int) ([]*domain.Analysis, error) {
	if limit <= 0 || limit > 50 {
		limit = 10
	}
	all, err := s.Repo.ListForUser(ctx, userID, 0)
	if err != nil {
		return nil, err
	}
	out := make([]*domain.Analysis, 0, limit)
	for _, a := range all {
		if a.Controversy >= ControversyThreshold {
			out = append(out, a)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Controversy > out[j].Controversy })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Stats is the aggregate view of one user's analyses.
type Stats struct {
	TotalAnalyses      int             `json:"total_analyses"`
	BiasDistribution   map[string]int  `json:"bias_distribution"`
	AvgBiasScore       float64         `json:"average_bias_score"`
	AvgConfidence      float64         `json:"average_confidence"`
	AvgControversy     float64         `json:"average_controversy"`
	AvgSentiment       float64         `json:"average_sentiment"`
	MostPositive       float64         `json:"most_positive_sentiment"`
	MostNegative       float64         `json:"most_negative_sentiment"`
	TopTopics          []TopicCount    `json:"top_topics"`
	AnalysesByMonth    map[string]int  `json:"analyses_by_month"`
	ControversialCount int             `json:"controversial_count"`
}

// TopicCount pairs a topic with how often it appeared.
type TopicCount struct {
	Topic string `json:"topic"`
	Count int    `json:"count"`
}

// UserStats computes the aggregate view from the user's stored analyses.
func (s *Service) UserStats(ctx context.Context, userID string) (*Stats, error) {
	all, err := s.Repo.ListForUser(ctx, userID, 0)
	if err != nil {
		return nil, err
	}

	st := &Stats{
		BiasDistribution: map[string]int{},
		AnalysesByMonth:  map[string]int{},
		TopTopics:        []TopicCount{},
	}
	st.TotalAnalyses = len(all)
	if len(all) == 0 {
		return st, nil
	}

	topicCounts := map[string]int{}
	st.MostPositive = -1
	st.MostNegative = 1
	for _, a := range all {
		st.BiasDistribution[string(a.Bias)]++
		st.AvgBiasScore += a.BiasScore
		st.AvgConfidence += a.BiasConfidence
		st.AvgControversy += a.Controversy
		st.AvgSentiment += a.OverallSentiment
		if a.OverallSentiment > st.MostPositive {
			st.MostPositive = a.OverallSentiment
		}
		if a.OverallSentiment < st.MostNegative {
			st.MostNegative = a.OverallSentiment
		}
		if a.Controversy >= ControversyThreshold {
			st.ControversialCount++
		}
		for _, t := range a.PrimaryTopics {
			topicCounts[t]++
		}
		st.AnalysesByMonth[a.CreatedAt.Format("2006-01")]++
	}

	n := float64(len(all))
	st.AvgBiasScore /= n
	st.AvgConfidence /= n
	st.AvgControversy /= n
	st.AvgSentiment /= n
	st.TopTopics = topTopics(topicCounts, 10)
	return st, nil
}

// TrendingTopic is one topic with usage over a window.
type TrendingTopic struct {
	Topic          string  `json:"topic"`
	Count          int     `json:"count"`
	AvgControversy float64 `json:"average_controversy"`
}

// TrendingTopics aggregates the user's topics over the last days.
func (s *Service) TrendingTopics(ctx context.Context, userID string, days, limit int) ([]TrendingTopic, error) {
	if days <= 0 {
		days = 7
	}
	if limit <= 0 || limit > 50 {
		limit = 10
	}
	all, err := s.Repo.ListForUser(ctx, userID, 0)
	if err != nil {
		return nil, err
	}
	cutoff := s.Clock.Now().AddDate(0, 0, -days)

	counts := map[string]int{}
	controversy := map[string]float64{}
	for _, a := range all {
		if a.CreatedAt.Before(cutoff) {
			continue
		}
		for _, t := range a.PrimaryTopics {
			counts[t]++
			controversy[t] += a.Controversy
		}
	}

	out := make([]TrendingTopic, 0, len(counts))
	for t, c := range counts {
		out = append(out, TrendingTopic{
			Topic:          t,
			Count:          c,
			AvgControversy: controversy[t] / float64(c),
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Topic < out[j].Topic
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func topTopics(counts map[string]int, limit int) []TopicCount {
	out := make([]TopicCount, 0, len(counts))
	for t, c := range counts {
		out = append(out, TopicCount{Topic: t, Count: c})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Topic < out[j].Topic
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

func (s *Service) archiveRaw(ctx context.Context, analysisID string, payload []byte) {
	if s.Archive == nil || len(payload) == 0 {
		return
	}
	key := fmt.Sprintf("openai/%s/%s.json", s.Clock.Now().UTC().Format("2006/01/02"), analysisID)
	if _, err := s.Archive.ArchivePayload(ctx, key, payload, "application/json"); err != nil {
		s.Log.Warn("raw response archive failed", zap.String("analysis", analysisID), zap.Error(err))
	}
}

func (s *Service) recordFailure(ctx context.Context, articleID string, cause error) {
	s.Log.Error("model call failed", zap.String("article", articleID), zap.Error(cause))
	if s.Errors == nil {
		return
	}
	entry := &audit.ExternalError{
		Component: "openai",
		Operation: "analyze",
		Subject:   articleID,
		Message:   cause.Error(),
		CreatedAt: s.Clock.Now(),
	}
	if err := s.Errors.Save(ctx, entry); err != nil {
		s.Log.Warn("failure entry not persisted", zap.Error(err))
	}
}
