// Package rag asks natural-language questions of the retrieval-augmented
// answering engine, an external program speaking JSON on stdout.
package rag

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"d3fend-graphx/internal/resultset"
)

var (
	ErrEmptyQuestion = errors.New("question is empty")
	ErrNoCommand     = errors.New("no rag command configured")
)

const maxStderr = 512

// Source is a knowledge-graph entry the answer was grounded on.
type Source struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	Labels     []string `json:"labels"`
	Similarity float64  `json:"similarity"`
}

// Answer is the engine's reply.
type Answer struct {
	Answer  string   `json:"answer"`
	Sources []Source `json:"sources"`
}

// Rows renders the sources as entity rows (id, name, framework, similarity) so
// they can be built into a graph.
func (a *Answer) Rows() []resultset.Row {
	keys := []string{"id", "name", "framework", "similarity"}
	rows := make([]resultset.Row, 0, len(a.Sources))
	for _, s := range a.Sources {
		values := map[string]string{
			"id":         s.ID,
			"name":       s.Name,
			"similarity": strconv.FormatFloat(s.Similarity, 'f', -1, 64),
		}
		for _, l := range s.Labels {
			if l != "Resource" {
				values["framework"] = l
				break
			}
		}
		rows = append(rows, resultset.NewRow(keys, values))
	}
	return rows
}

// Client runs the engine once per question.
type Client struct {
	// Command is the program and leading arguments, e.g. ["python3", "rag/rag_engine.py"].
	Command []string
	// Backend selects the engine's language model provider (ollama or openai).
	Backend string
	// Model overrides the engine's default local model when set.
	Model   string
	TopK    int
	Timeout time.Duration
	Logger  *zap.Logger
}

func (c *Client) args(question string) []string {
	args := append([]string{}, c.Command[1:]...)
	if c.Backend != "" {
		args = append(args, "--backend", c.Backend)
	}
	args = append(args, "--query", question)
	if c.TopK > 0 {
		args = append(args, "--top-k", strconv.Itoa(c.TopK))
	}
	if c.Model != "" {
		args = append(args, "--ollama-model", c.Model)
	}
	return args
}

// Ask sends question to the engine and decodes its answer.
func (c *Client) Ask(ctx context.Context, question string) (*Answer, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, ErrEmptyQuestion
	}
	if len(c.Command) == 0 {
		return nil, fmt.Errorf("%w: %w", resultset.ErrBackendUnavailable, ErrNoCommand)
	}
	if c.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}

	logger := c.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, c.Command[0], c.args(question)...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.WaitDelay = time.Second

	start := time.Now()
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("rag engine timed out: %w", ctx.Err())
		}
		var execErr *exec.Error
		if errors.As(err, &execErr) || errors.Is(err, fs.ErrNotExist) || errors.Is(err, fs.ErrPermission) {
			return nil, fmt.Errorf("%w: %v", resultset.ErrBackendUnavailable, err)
		}
		return nil, fmt.Errorf("rag engine failed: %w: %s", err, excerpt(stderr.String()))
	}
	logger.Debug("rag engine answered", zap.Duration("elapsed", time.Since(start)))

	return decodeAnswer(stdout.Bytes())
}

// decodeAnswer reads the JSON document from stdout, skipping any log lines
// printed before it.
func decodeAnswer(out []byte) (*Answer, error) {
	i := bytes.IndexByte(out, '{')
	if i < 0 {
		return nil, fmt.Errorf("rag engine produced no JSON: %s", excerpt(string(out)))
	}
	var ans Answer
	if err := json.NewDecoder(bytes.NewReader(out[i:])).Decode(&ans); err != nil {
		return nil, fmt.Errorf("failed to decode rag answer: %w", err)
	}
	if ans.Sources == nil {
		ans.Sources = []Source{}
	}
	return &ans, nil
}

func excerpt(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > maxStderr {
		return s[len(s)-maxStderr:]
	}
	return s
}
