package classifier

import (
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"
	"strings"
	"sync"
	"time"
	"unicode/utf8"
)

// Result é imutável depois de criado.
type Result struct {
	Category   Category `json:"label"`
	Confidence float64  `json:"confidence"`
	// Degraded indica que houve falha interna e o resultado é o Fallback.
	Degraded bool `json:"-"`
}

// Fallback é devolvido quando nada casa ou quando algo falha. Reciclável é o
// destino padrão.
var Fallback = Result{Category: Recyclable, Confidence: 0.30}

const (
	maxTextConfidence  = 0.95
	baseTextConfidence = 0.60
	textConfidenceSpan = 0.35

	minImageConfidence = 0.75
	maxImageConfidence = 0.95

	largeImagePixels = 1_000_000
	wideAspectRatio  = 2.0
)

// ScoreVector é o peso acumulado por categoria de uma requisição.
type ScoreVector map[Category]float64

// RandomSource é a fonte usada pela heurística de imagem. *rand.Rand de
// math/rand/v2 satisfaz a interface.
type RandomSource interface {
	Float64() float64
}

type Scorer struct {
	keywords KeywordTable
	weights  map[string]float64

	mu  sync.Mutex // serializa os dois sorteios de ClassifyImage
	rnd RandomSource

	log *slog.Logger
}

type Option func(*Scorer)

// WithKeywords substitui a tabela embutida. Tabelas inválidas são ignoradas
// com log de erro; use ParseKeywords/LoadKeywords para validar antes.
func WithKeywords(t KeywordTable) Option {
	return func(s *Scorer) {
		n, err := t.normalize()
		if err != nil {
			s.log.Error("ignoring invalid keyword table", "error", err)
			return
		}
		s.keywords = n
	}
}

func WithRandom(r RandomSource) Option {
	return func(s *Scorer) {
		if r != nil {
			s.rnd = r
		}
	}
}

// WithSeed fixa a semente da heurística de imagem.
func WithSeed(seed uint64) Option {
	return func(s *Scorer) { s.rnd = rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)) }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Scorer) {
		if l != nil {
			s.log = l
		}
	}
}

func NewScorer(opts ...Option) *Scorer {
	now := uint64(time.Now().UnixNano())
	s := &Scorer{
		keywords: DefaultKeywords(),
		rnd:      rand.New(rand.NewPCG(now, now>>1)),
		log:      slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.weights = make(map[string]float64)
	for _, kws := range s.keywords {
		for _, kw := range kws {
			s.weights[kw] = float64(utf8.RuneCountInString(kw))/10 + 1
		}
	}
	return s
}

// Keywords devolve uma cópia da tabela em uso.
func (s *Scorer) Keywords() KeywordTable { return s.keywords.clone() }

// Scores calcula o ScoreVector do texto (já sanitizado).
func (s *Scorer) Scores(text string) ScoreVector {
	lower := strings.ToLower(text)
	scores := make(ScoreVector, len(Categories))
	for _, c := range Categories {
		scores[c] = 0
		for _, kw := range s.keywords[c] {
			if strings.Contains(lower, kw) {
				scores[c] += s.weights[kw]
			}
		}
	}
	return scores
}

// ClassifyText escolhe a categoria com maior soma; empate fica com a primeira
// em Categories. Sem nenhuma palavra-chave, devolve Fallback.
func (s *Scorer) ClassifyText(text string) (res Result) {
	defer s.recoverTo(&res, "text")

	scores := s.Scores(text)

	var best Category
	bestScore, total := 0.0, 0.0
	for _, c := range Categories {
		v := scores[c]
		total += v
		if v > bestScore {
			best, bestScore = c, v
		}
	}
	if total == 0 {
		return Fallback
	}

	confidence := math.Min(maxTextConfidence, baseTextConfidence+bestScore/total*textConfidenceSpan)
	return Result{Category: best, Confidence: round2(confidence)}
}

// ClassifyImage é a heurística provisória sobre as dimensões. format só entra
// no log.
func (s *Scorer) ClassifyImage(width, height int, format string) (res Result) {
	defer s.recoverTo(&res, "image")

	if width <= 0 || height < 0 {
		s.log.Warn("classification degraded", "modality", "image", "error", fmt.Sprintf("invalid dimensions %dx%d", width, height))
		return degraded()
	}

	pixels := int64(width) * int64(height)
	aspect := 1.0
	if height > 0 {
		aspect = float64(width) / float64(height)
	}

	var weights [3]float64
	switch {
	case pixels > largeImagePixels:
		weights = [3]float64{0.7, 0.2, 0.1}
	case aspect > wideAspectRatio:
		weights = [3]float64{0.8, 0.15, 0.05}
	default:
		weights = [3]float64{0.6, 0.3, 0.1}
	}

	s.mu.Lock()
	pick := s.rnd.Float64()
	conf := s.rnd.Float64()
	s.mu.Unlock()

	res = Result{
		Category:   weightedChoice(weights, pick),
		Confidence: round2(minImageConfidence + (maxImageConfidence-minImageConfidence)*conf),
	}
	s.log.Debug("image classified", "width", width, "height", height, "format", format, "label", res.Category, "confidence", res.Confidence)
	return res
}

func weightedChoice(weights [3]float64, r float64) Category {
	total := 0.0
	for _, w := range weights {
		total += w
	}
	target := r * total
	cum := 0.0
	for i, w := range weights {
		cum += w
		if target < cum {
			return Categories[i]
		}
	}
	return Categories[len(Categories)-1]
}

func (s *Scorer) recoverTo(res *Result, modality string) {
	if r := recover(); r != nil {
		s.log.Error("classification degraded", "modality", modality, "panic", r)
		*res = degraded()
	}
}

func degraded() Result {
	r := Fallback
	r.Degraded = true
	return r
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
