package analysis

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"meditranslate/internal/logger"
	"meditranslate/pkg/models"
)

const (
	primaryGlossaryFile = "medical_glossary.json"
	backupGlossaryFile  = "codes_glossary.json"

	// Key carrying file metadata in the curated glossary, not a term.
	metaKey = "_meta"
)

// PrimaryEntry is one curated glossary term with the insight it produces.
type PrimaryEntry struct {
	Term    string
	Insight models.Insight
}

// BackupEntry maps a diagnosis code to its plain-text description.
type BackupEntry struct {
	Code        string
	Description string
}

// Lexicon is the read-only term knowledge injected into an Analyzer.
// Primary entries keep their curated order; backup entries are sorted by
// code so the capped backup scan stays deterministic.
type Lexicon struct {
	primary   []PrimaryEntry
	primaryRe []*regexp.Regexp
	backup    []BackupEntry
}

// NewLexicon builds an immutable lexicon from the given entries. Terms are
// lowercased and given precompiled whole-word matchers.
func NewLexicon(primary []PrimaryEntry, backup []BackupEntry) *Lexicon {
	lex := &Lexicon{
		primary:   make([]PrimaryEntry, 0, len(primary)),
		primaryRe: make([]*regexp.Regexp, 0, len(primary)),
		backup:    make([]BackupEntry, len(backup)),
	}
	for _, e := range primary {
		term := strings.ToLower(strings.TrimSpace(e.Term))
		if term == "" {
			continue
		}
		e.Term = term
		if e.Insight.Title == "" {
			e.Insight.Title = e.Term
		}
		if e.Insight.Category == "" {
			e.Insight.Category = models.CategoryInfo
		}
		lex.primary = append(lex.primary, e)
		lex.primaryRe = append(lex.primaryRe, regexp.MustCompile(`\b`+regexp.QuoteMeta(term)+`\b`))
	}
	copy(lex.backup, backup)
	sort.Slice(lex.backup, func(i, j int) bool {
		return lex.backup[i].Code < lex.backup[j].Code
	})
	return lex
}

// PrimaryCount returns the number of curated terms.
func (l *Lexicon) PrimaryCount() int { return len(l.primary) }

// BackupCount returns the number of backup code entries.
func (l *Lexicon) BackupCount() int { return len(l.backup) }

// Definition looks up the description for a term or insight title,
// case-insensitively. Used to seed explanation requests.
func (l *Lexicon) Definition(term string) (string, bool) {
	needle := strings.ToLower(strings.TrimSpace(term))
	for _, e := range l.primary {
		if e.Term == needle || strings.ToLower(e.Insight.Title) == needle {
			return e.Insight.Description, true
		}
	}
	return "", false
}

// LoadLexicon reads the curated and backup glossaries from dir. Loading
// degrades rather than fails: a missing curated file falls back to a
// built-in single entry, a missing backup file leaves the backup empty,
// and parse failures are logged and produce empty sections.
func LoadLexicon(dir string) *Lexicon {
	log := logger.WithComponent("analysis")

	primary := loadPrimary(filepath.Join(dir, primaryGlossaryFile), log)
	backup := loadBackup(filepath.Join(dir, backupGlossaryFile), log)

	lex := NewLexicon(primary, backup)
	log.Info().
		Int("primary_terms", lex.PrimaryCount()).
		Int("backup_codes", lex.BackupCount()).
		Str("dir", dir).
		Msg("Lexicon loaded")
	return lex
}

func loadPrimary(path string, log zerolog.Logger) []PrimaryEntry {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			log.Warn().Str("path", path).Msg("Curated glossary not found, using built-in fallback")
			return defaultPrimary()
		}
		log.Error().Err(err).Str("path", path).Msg("Failed to open curated glossary")
		return nil
	}
	defer f.Close()

	entries, err := decodePrimaryGlossary(f)
	if err != nil {
		log.Error().Err(err).Str("path", path).Msg("Failed to parse curated glossary")
		return nil
	}
	return entries
}

func loadBackup(path string, log zerolog.Logger) []BackupEntry {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			log.Warn().Str("path", path).Msg("Backup glossary not found")
			return nil
		}
		log.Error().Err(err).Str("path", path).Msg("Failed to open backup glossary")
		return nil
	}
	defer f.Close()

	entries, err := decodeBackupGlossary(f)
	if err != nil {
		log.Error().Err(err).Str("path", path).Msg("Failed to parse backup glossary")
		return nil
	}
	return entries
}

// glossaryEntry is the on-disk shape of one curated glossary value.
type glossaryEntry struct {
	Title string `json:"title"`
	Desc  string `json:"desc"`
	Type  string `json:"type"`
}

// decodePrimaryGlossary reads a JSON object term by term so the curated
// file order survives into the lexicon. The "_meta" key is dropped.
func decodePrimaryGlossary(r io.Reader) ([]PrimaryEntry, error) {
	dec := json.NewDecoder(r)

	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, fmt.Errorf("curated glossary must be a JSON object")
	}

	var entries []PrimaryEntry
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := keyTok.(string)
		if !ok {
			return nil, fmt.Errorf("unexpected token %v in curated glossary", keyTok)
		}

		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return nil, err
		}
		if key == metaKey {
			continue
		}

		var entry glossaryEntry
		if err := json.Unmarshal(raw, &entry); err != nil {
			return nil, fmt.Errorf("term %q: %w", key, err)
		}
		entries = append(entries, PrimaryEntry{
			Term: key,
			Insight: models.Insight{
				Title:       entry.Title,
				Description: entry.Desc,
				Category:    models.InsightCategory(entry.Type),
			},
		})
	}
	return entries, nil
}

// decodeBackupGlossary accepts either a list of {code, description}
// objects (pair arrays tolerated) or a plain code-to-description object.
func decodeBackupGlossary(r io.Reader) ([]BackupEntry, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	trimmed := strings.TrimSpace(string(data))
	if strings.HasPrefix(trimmed, "[") {
		var items []json.RawMessage
		if err := json.Unmarshal(data, &items); err != nil {
			return nil, err
		}
		var entries []BackupEntry
		for _, item := range items {
			var obj struct {
				Code        string `json:"code"`
				Description string `json:"description"`
			}
			if err := json.Unmarshal(item, &obj); err == nil && obj.Code != "" && obj.Description != "" {
				entries = append(entries, BackupEntry{Code: obj.Code, Description: obj.Description})
				continue
			}
			var pair []string
			if err := json.Unmarshal(item, &pair); err == nil && len(pair) >= 2 {
				entries = append(entries, BackupEntry{Code: pair[0], Description: pair[1]})
			}
		}
		return entries, nil
	}

	var m map[string]string
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	entries := make([]BackupEntry, 0, len(m))
	for code, desc := range m {
		entries = append(entries, BackupEntry{Code: code, Description: desc})
	}
	return entries, nil
}

// defaultPrimary is the minimal built-in glossary used when no curated
// file is present.
func defaultPrimary() []PrimaryEntry {
	return []PrimaryEntry{
		{
			Term: "mg",
			Insight: models.Insight{
				Title:       "Milligrams",
				Description: "Dosage unit",
				Category:    models.CategoryInfo,
			},
		},
	}
}
