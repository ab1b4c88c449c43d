package gerrit

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"reviewstats.app/listener/common/logger"
	"reviewstats.app/listener/internal/domain"
)

var ErrChangeNotFound = errors.New("change not found")

type Config struct {
	Host    string
	Port    int
	User    string
	KeyFile string
}

// Client queries a Gerrit server through its SSH command interface.
type Client struct {
	runner CommandRunner
	cfg    Config
}

func NewClient(runner CommandRunner, cfg Config) *Client {
	if cfg.Port == 0 {
		cfg.Port = 29418
	}
	return &Client{runner: runner, cfg: cfg}
}

// queryRow is one line of `gerrit query --format JSON`. The last line is a
// stats row ({"type":"stats","rowCount":N}).
type queryRow struct {
	Type            string `json:"type"`
	RowCount        int    `json:"rowCount"`
	CurrentPatchSet *struct {
		Files []struct {
			File       string `json:"file"`
			Type       string `json:"type"`
			Insertions int    `json:"insertions"`
			Deletions  int    `json:"deletions"`
		} `json:"files"`
	} `json:"currentPatchSet"`
}

// FilesForChange returns the file list of the change's current patch set.
func (c *Client) FilesForChange(ctx context.Context, changeID int64) ([]domain.FileChange, error) {
	out, err := c.runner.Run(ctx, c.queryCommand(changeID))
	if err != nil {
		return nil, fmt.Errorf("gerrit query: %w", err)
	}
	return parseFiles(out, changeID)
}

func (c *Client) queryCommand(changeID int64) Command {
	args := []string{"-p", strconv.Itoa(c.cfg.Port), "-o", "BatchMode=yes"}
	if c.cfg.KeyFile != "" {
		args = append(args, "-i", c.cfg.KeyFile)
	}
	args = append(args,
		c.cfg.User+"@"+c.cfg.Host,
		"gerrit", "query",
		"--current-patch-set",
		"--format", "JSON",
		"--files",
		"change:"+strconv.FormatInt(changeID, 10),
	)
	return Command{Name: "ssh", Args: args}
}

func parseFiles(out []byte, changeID int64) ([]domain.FileChange, error) {
	scanner := bufio.NewScanner(bytes.NewReader(out))
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		var row queryRow
		if err := json.Unmarshal(line, &row); err != nil {
			return nil, fmt.Errorf("decoding query output %q: %w", logger.Truncate(string(line), 200), err)
		}
		if row.Type == "stats" {
			continue
		}
		if row.CurrentPatchSet == nil {
			return nil, fmt.Errorf("change %d: no current patch set in query output", changeID)
		}

		files := make([]domain.FileChange, 0, len(row.CurrentPatchSet.Files))
		for _, f := range row.CurrentPatchSet.Files {
			files = append(files, domain.FileChange{
				Path:       f.File,
				ChangeType: f.Type,
				Insertions: f.Insertions,
				Deletions:  f.Deletions,
			})
		}
		return files, nil
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading query output: %w", err)
	}

	return nil, fmt.Errorf("change %d: %w", changeID, ErrChangeNotFound)
}
