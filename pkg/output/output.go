package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gilchrisn/community-detection/pkg/louvain"
)

// WriteCommunities prints the run time, the community count and one line per
// community with its sorted members, labelled from 1.
func WriteCommunities(w io.Writer, result *louvain.Result) error {
	groups := result.Groups()

	if _, err := fmt.Fprintf(w, "Louvain execution time: %.2f seconds.\n", result.Statistics.Elapsed.Seconds()); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "Detected %d communities.\n", len(groups)); err != nil {
		return err
	}

	for i, nodes := range groups {
		if _, err := fmt.Fprintf(w, "community%d - nodes: %s\n", i+1, formatNodes(nodes)); err != nil {
			return err
		}
	}
	return nil
}

func formatNodes(nodes []int64) string {
	parts := make([]string, len(nodes))
	for i, n := range nodes {
		parts[i] = strconv.FormatInt(n, 10)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// jsonResult is the serialized form of a run.
type jsonResult struct {
	Communities    map[string]int     `json:"communities"`
	Groups         [][]int64          `json:"groups"`
	Modularity     float64            `json:"modularity"`
	NumCommunities int                `json:"num_communities"`
	State          louvain.State      `json:"state"`
	Statistics     louvain.Statistics `json:"statistics"`
}

// WriteJSON writes the normalized mapping with modularity, final state and
// run statistics as an indented JSON document.
func WriteJSON(w io.Writer, result *louvain.Result) error {
	doc := jsonResult{
		Communities:    make(map[string]int, len(result.Communities)),
		Groups:         result.Groups(),
		Modularity:     result.Modularity,
		NumCommunities: result.NumCommunities,
		State:          result.State,
		Statistics:     result.Statistics,
	}
	for node, c := range result.Communities {
		doc.Communities[strconv.FormatInt(node, 10)] = c
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(doc); err != nil {
		return fmt.Errorf("failed to encode result: %w", err)
	}
	return nil
}

// Writer persists a run result
type Writer interface {
	WriteMapping(result *louvain.Result, path string) error
	WriteRoot(result *louvain.Result, path string) error
	WriteJSON(result *louvain.Result, path string) error
	WriteAll(result *louvain.Result, outputDir string, prefix string) error
}

// FileWriter implements Writer for file-based output
type FileWriter struct{}

// NewFileWriter creates a new file-based output writer
func NewFileWriter() Writer {
	return &FileWriter{}
}

// WriteAll writes the mapping, root and JSON files into outputDir
func (fw *FileWriter) WriteAll(result *louvain.Result, outputDir string, prefix string) error {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	mappingPath := filepath.Join(outputDir, fmt.Sprintf("%s.mapping", prefix))
	if err := fw.WriteMapping(result, mappingPath); err != nil {
		return fmt.Errorf("failed to write mapping: %w", err)
	}

	rootPath := filepath.Join(outputDir, fmt.Sprintf("%s.root", prefix))
	if err := fw.WriteRoot(result, rootPath); err != nil {
		return fmt.Errorf("failed to write root: %w", err)
	}

	jsonPath := filepath.Join(outputDir, fmt.Sprintf("%s.json", prefix))
	if err := fw.WriteJSON(result, jsonPath); err != nil {
		return fmt.Errorf("failed to write json: %w", err)
	}

	return nil
}

// WriteMapping writes every community as its identifier, its size and then
// one member node per line.
func (fw *FileWriter) WriteMapping(result *louvain.Result, path string) error {
	return writeFile(path, func(w io.Writer) error {
		for c, nodes := range result.Groups() {
			if _, err := fmt.Fprintf(w, "%s\n%d\n", communityID(c), len(nodes)); err != nil {
				return err
			}
			for _, node := range nodes {
				if _, err := fmt.Fprintf(w, "%d\n", node); err != nil {
					return err
				}
			}
		}
		return nil
	})
}

// WriteRoot writes the community identifiers, one per line
func (fw *FileWriter) WriteRoot(result *louvain.Result, path string) error {
	return writeFile(path, func(w io.Writer) error {
		for c := range result.Groups() {
			if _, err := fmt.Fprintln(w, communityID(c)); err != nil {
				return err
			}
		}
		return nil
	})
}

// WriteJSON writes the result document produced by the package-level WriteJSON
func (fw *FileWriter) WriteJSON(result *louvain.Result, path string) error {
	return writeFile(path, func(w io.Writer) error {
		return WriteJSON(w, result)
	})
}

// communityID names a community in the single-level hierarchy.
func communityID(c int) string {
	return fmt.Sprintf("c0_l1_%d", c)
}

func writeFile(path string, write func(io.Writer) error) (err error) {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := file.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	return write(file)
}
