// Package model provides verdict classification over a frozen ONNX model.
//
// The classifier pairs a BERT wordpiece tokenizer (sugarme/tokenizer) with an
// onnxruntime session. Both are loaded once at construction and held for the
// life of the process; inference is read-only, so concurrent Predict calls
// are safe. Each forward pass is CPU-bound — callers that need bounded
// latency should cap in-flight predictions themselves.
package model

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"unicode/utf8"

	"github.com/sugarme/tokenizer"
	"github.com/sugarme/tokenizer/pretrained"
	ort "github.com/yalue/onnxruntime_go"
)

// MaxSeqLen is the fixed token budget. Longer inputs are truncated,
// shorter ones padded.
const MaxSeqLen = 256

var (
	// ErrBadInput marks empty or undecodable classification input.
	ErrBadInput = errors.New("invalid classification input")

	// ErrModelUnavailable marks a model or tokenizer that could not be
	// loaded. Fatal for the process; never retried automatically.
	ErrModelUnavailable = errors.New("model unavailable")
)

// Encoder turns raw text into fixed-length token id and attention mask rows.
type Encoder interface {
	Encode(text string) (ids []int64, mask []int64, err error)
}

// Runner executes one forward pass and returns the raw class logits.
type Runner interface {
	Run(ids []int64, mask []int64) ([]float32, error)
	Close() error
}

// Config holds the artifact paths needed to construct a Classifier.
type Config struct {
	ModelPath     string // ONNX graph with inputs input_ids/attention_mask, output logits
	TokenizerPath string // HuggingFace tokenizer.json
	LibraryPath   string // onnxruntime shared library; empty = loader default
}

// Validate checks that the configuration is complete.
func (c Config) Validate() error {
	if c.ModelPath == "" {
		return fmt.Errorf("model path is required")
	}
	if c.TokenizerPath == "" {
		return fmt.Errorf("tokenizer path is required")
	}
	return nil
}

// Classifier maps case text to a (verdict, confidence) pair.
type Classifier struct {
	enc Encoder
	run Runner
}

// NewClassifier loads the tokenizer and ONNX session described by cfg.
// Load failures wrap ErrModelUnavailable.
func NewClassifier(cfg Config) (*Classifier, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrModelUnavailable, err)
	}

	enc, err := newBertEncoder(cfg.TokenizerPath)
	if err != nil {
		return nil, fmt.Errorf("%w: loading tokenizer: %v", ErrModelUnavailable, err)
	}

	run, err := newOrtRunner(cfg.ModelPath, cfg.LibraryPath)
	if err != nil {
		return nil, fmt.Errorf("%w: loading onnx session: %v", ErrModelUnavailable, err)
	}

	return &Classifier{enc: enc, run: run}, nil
}

// Predict runs one forward pass over text and returns the arg-max verdict
// and its softmax probability.
func (c *Classifier) Predict(ctx context.Context, text string) (Verdict, float64, error) {
	if text == "" {
		return "", 0, fmt.Errorf("%w: empty text", ErrBadInput)
	}
	if !utf8.ValidString(text) {
		return "", 0, fmt.Errorf("%w: text is not valid UTF-8", ErrBadInput)
	}
	if err := ctx.Err(); err != nil {
		return "", 0, err
	}

	ids, mask, err := c.enc.Encode(text)
	if err != nil {
		return "", 0, fmt.Errorf("encoding text: %w", err)
	}

	logits, err := c.run.Run(ids, mask)
	if err != nil {
		return "", 0, fmt.Errorf("running inference: %w", err)
	}
	if len(logits) != NumClasses {
		return "", 0, fmt.Errorf("expected %d logits, got %d", NumClasses, len(logits))
	}

	probs := softmax(logits)
	best := 0
	for i := 1; i < len(probs); i++ {
		if probs[i] > probs[best] {
			best = i
		}
	}

	verdict, err := VerdictFromLabel(best)
	if err != nil {
		return "", 0, err
	}
	return verdict, probs[best], nil
}

// Close releases the ONNX session.
func (c *Classifier) Close() error {
	return c.run.Close()
}

// softmax converts logits to probabilities. Subtracting the max logit keeps
// the exponentials finite for large magnitudes.
func softmax(logits []float32) []float64 {
	maxLogit := logits[0]
	for _, l := range logits[1:] {
		if l > maxLogit {
			maxLogit = l
		}
	}

	probs := make([]float64, len(logits))
	var sum float64
	for i, l := range logits {
		probs[i] = math.Exp(float64(l - maxLogit))
		sum += probs[i]
	}
	for i := range probs {
		probs[i] /= sum
	}
	return probs
}

// bertEncoder adapts sugarme/tokenizer to the Encoder interface with the
// fixed truncate/pad budget applied.
type bertEncoder struct {
	tk *tokenizer.Tokenizer
}

func newBertEncoder(path string) (*bertEncoder, error) {
	tk, err := pretrained.FromFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	truncation := tokenizer.TruncationParams{
		MaxLength: MaxSeqLen,
		Strategy:  tokenizer.LongestFirst,
	}
	tk.WithTruncation(&truncation)

	padStrategy := tokenizer.NewPaddingStrategy(tokenizer.WithFixed(MaxSeqLen))
	padding := tokenizer.PaddingParams{
		Strategy:  *padStrategy,
		Direction: tokenizer.Right,
		PadToken:  "[PAD]",
	}
	tk.WithPadding(&padding)

	return &bertEncoder{tk: tk}, nil
}

func (e *bertEncoder) Encode(text string) ([]int64, []int64, error) {
	en, err := e.tk.EncodeSingle(text, true)
	if err != nil {
		return nil, nil, err
	}

	ids := make([]int64, len(en.Ids))
	for i, id := range en.Ids {
		ids[i] = int64(id)
	}
	mask := make([]int64, len(en.AttentionMask))
	for i, m := range en.AttentionMask {
		mask[i] = int64(m)
	}
	return ids, mask, nil
}

// ortEnvOnce initializes the process-wide onnxruntime environment exactly
// once; it is torn down only at process exit.
var (
	ortEnvOnce sync.Once
	ortEnvErr  error
)

func initOrtEnvironment(libraryPath string) error {
	ortEnvOnce.Do(func() {
		if libraryPath != "" {
			ort.SetSharedLibraryPath(libraryPath)
		}
		ortEnvErr = ort.InitializeEnvironment()
	})
	return ortEnvErr
}

// ortRunner adapts an onnxruntime session to the Runner interface.
type ortRunner struct {
	session *ort.DynamicAdvancedSession
}

func newOrtRunner(modelPath, libraryPath string) (*ortRunner, error) {
	if err := initOrtEnvironment(libraryPath); err != nil {
		return nil, fmt.Errorf("initializing onnxruntime: %w", err)
	}

	session, err := ort.NewDynamicAdvancedSession(modelPath,
		[]string{"input_ids", "attention_mask"},
		[]string{"logits"},
		nil)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", modelPath, err)
	}
	return &ortRunner{session: session}, nil
}

func (r *ortRunner) Run(ids []int64, mask []int64) ([]float32, error) {
	shape := ort.NewShape(1, int64(len(ids)))

	idsTensor, err := ort.NewTensor(shape, ids)
	if err != nil {
		return nil, fmt.Errorf("creating input_ids tensor: %w", err)
	}
	defer idsTensor.Destroy()

	maskTensor, err := ort.NewTensor(shape, mask)
	if err != nil {
		return nil, fmt.Errorf("creating attention_mask tensor: %w", err)
	}
	defer maskTensor.Destroy()

	outTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(1, NumClasses))
	if err != nil {
		return nil, fmt.Errorf("creating output tensor: %w", err)
	}
	defer outTensor.Destroy()

	err = r.session.Run(
		[]ort.Value{idsTensor, maskTensor},
		[]ort.Value{outTensor},
	)
	if err != nil {
		return nil, fmt.Errorf("session run: %w", err)
	}

	logits := make([]float32, NumClasses)
	copy(logits, outTensor.GetData())
	return logits, nil
}

func (r *ortRunner) Close() error {
	return r.session.Destroy()
}
