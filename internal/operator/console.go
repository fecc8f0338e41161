// Package operator is the human side of a migration run: sample review,
// instruction edits, bulk quantity, review of uncertain URLs and the
// execution confirmation, all read line by line from a terminal.
package operator

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/mattn/go-isatty"

	"github.com/jonesrussell/north-cloud/catalog-migrator/internal/refinement"
)

// ErrInputClosed is returned when the operator's input ends.
var ErrInputClosed = errors.New("operator input closed")

const rule = "============================================================"

// Console prompts on out and reads answers from in.
type Console struct {
	in   io.Reader
	out  io.Writer
	once sync.Once
	// lines is fed by a single reader goroutine so prompts can honor ctx.
	lines chan string
}

// NewConsole creates a Console.
func NewConsole(in io.Reader, out io.Writer) *Console {
	return &Console{in: in, out: out}
}

// IsTerminal reports whether f is an interactive terminal.
func IsTerminal(f *os.File) bool {
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func (c *Console) start() {
	c.lines = make(chan string)
	go func() {
		defer close(c.lines)
		scanner := bufio.NewScanner(c.in)
		scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
		for scanner.Scan() {
			c.lines <- scanner.Text()
		}
	}()
}

func (c *Console) printf(format string, args ...any) {
	_, _ = fmt.Fprintf(c.out, format, args...)
}

// readLine prints prompt and returns the next input line without its
// trailing newline.
func (c *Console) readLine(ctx context.Context, prompt string) (string, error) {
	c.once.Do(c.start)
	if prompt != "" {
		c.printf("%s", prompt)
	}
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case line, ok := <-c.lines:
		if !ok {
			return "", ErrInputClosed
		}
		return strings.TrimRight(line, "\r"), nil
	}
}

// ReviewSample shows the iteration and asks for a review action until the
// answer parses.
func (c *Console) ReviewSample(ctx context.Context, it refinement.Iteration) (refinement.Action, error) {
	c.printf("\n%s\nITERATION %d - SAMPLE PRODUCT MAPPING\n%s\n", rule, it.Number, rule)
	if it.Failed() {
		c.printf("Extraction failed (%s): %s\n", it.Reason, it.Error)
	} else {
		data, err := json.MarshalIndent(it.Record, "", "  ")
		if err != nil {
			return "", fmt.Errorf("render sample: %w", err)
		}
		c.printf("%s\n", data)
	}

	c.printf("\nOptions:\n")
	c.printf("  - Type 'done' to accept and proceed\n")
	c.printf("  - Type 'refine' to edit the extraction instructions and re-extract\n")
	c.printf("  - Type 'retry' to re-extract with the current instructions\n")
	c.printf("  - Type 'feedback' to add a correction to the instructions\n")
	c.printf("  - Press Enter to accept\n")

	for {
		answer, err := c.readLine(ctx, "\nWhat would you like to do? ")
		if err != nil {
			return "", err
		}
		action, parseErr := refinement.ParseAction(answer)
		if parseErr == nil {
			return action, nil
		}
		c.printf("Invalid option %q. Type done, refine, retry or feedback.\n", answer)
	}
}

// EditInstructions shows the current instructions and reads replacement
// text until a line reading "done" or two consecutive blank lines. "keep"
// on the first line, or no text at all, keeps the current instructions.
func (c *Console) EditInstructions(ctx context.Context, current string) (string, error) {
	if strings.TrimSpace(current) != "" {
		c.printf("\nCurrent instructions:\n%s\n%s\n%s\n", strings.Repeat("-", len(rule)), current, strings.Repeat("-", len(rule)))
	}
	c.printf("\nEnter the new extraction instructions. They replace the current ones.\n")
	c.printf("Describe where fields live, e.g. \"SKU price = value attribute of input#qty\".\n")
	c.printf("Finish with 'done' on its own line or two blank lines. Type 'keep' to keep the current text.\n")

	var lines []string
	for {
		line, err := c.readLine(ctx, "")
		if errors.Is(err, ErrInputClosed) && len(lines) > 0 {
			break
		}
		if err != nil {
			return "", err
		}

		trimmed := strings.ToLower(strings.TrimSpace(line))
		if trimmed == "done" {
			break
		}
		if trimmed == "keep" && len(lines) == 0 {
			return "", nil
		}
		if line == "" && len(lines) > 0 && lines[len(lines)-1] == "" {
			break
		}
		lines = append(lines, line)
	}
	return strings.TrimSpace(strings.Join(lines, "\n")), nil
}

// Feedback asks for a correction to the given iteration.
func (c *Console) Feedback(ctx context.Context, iteration int) (string, error) {
	c.printf("\nDescribe what iteration %d got wrong. Leave empty to cancel.\n", iteration)
	line, err := c.readLine(ctx, "Feedback: ")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// BulkQuantity asks how many of the available URLs to extract.
func (c *Console) BulkQuantity(ctx context.Context, available int) (string, error) {
	c.printf("\nTotal product URLs available: %d\n", available)
	line, err := c.readLine(ctx, "How many products would you like to import in this phase? (number or 'all'): ")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// ReviewPossible lists URLs the classifier was unsure about and returns the
// ones the operator includes: all, none, or a comma-separated list of
// 1-based numbers.
func (c *Console) ReviewPossible(ctx context.Context, urls []string) ([]string, error) {
	if len(urls) == 0 {
		return nil, nil
	}
	c.printf("\n%d URLs may be product pages:\n", len(urls))
	for i, u := range urls {
		c.printf("  %3d. %s\n", i+1, u)
	}

	for {
		line, err := c.readLine(ctx, "Include which? (all, none, or numbers like 1,3,5) [none]: ")
		if err != nil {
			return nil, err
		}
		picked, parseErr := pick(urls, line)
		if parseErr == nil {
			return picked, nil
		}
		c.printf("%v\n", parseErr)
	}
}

func pick(urls []string, answer string) ([]string, error) {
	answer = strings.ToLower(strings.TrimSpace(answer))
	switch answer {
	case "", "none", "n":
		return nil, nil
	case "all", "a":
		return append([]string(nil), urls...), nil
	}

	seen := make(map[int]bool)
	var out []string
	for _, part := range strings.Split(answer, ",") {
		n, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil || n < 1 || n > len(urls) {
			return nil, fmt.Errorf("invalid selection %q: use numbers between 1 and %d", strings.TrimSpace(part), len(urls))
		}
		if !seen[n] {
			seen[n] = true
			out = append(out, urls[n-1])
		}
	}
	return out, nil
}

// Confirm shows the plan location and returns the raw answer.
func (c *Console) Confirm(ctx context.Context, planPath string) (string, error) {
	c.printf("\n%s\nREADY TO EXECUTE\n%s\n", rule, rule)
	c.printf("Review the plan at %s\n", planPath)
	c.printf("\nOptions:\n")
	c.printf("  - Type 'APPROVED' to proceed with execution\n")
	c.printf("  - Type 'RETRY' to regenerate the plan and review again\n")
	c.printf("  - Type 'CANCEL' to stop\n")
	return c.readLine(ctx, "\nWhat would you like to do? ")
}

// Notify prints an informational message.
func (c *Console) Notify(format string, args ...any) {
	c.printf(format+"\n", args...)
}
