package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/CZERTAINLY/Sniffer/internal/model"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/custom"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/token/lowercase"
	"github.com/blevesearch/bleve/v2/analysis/tokenizer/unicode"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/search/query"
	bolt "go.etcd.io/bbolt"
)

const (
	dbName    = "history.db"
	indexName = "history.bleve"
)

// Bucket names.
var (
	// record id -> json
	bucketRecords = []byte("records")
	// user -> nested bucket of record ids
	bucketUsers = []byte("users")
)

// BoltStore keeps records in a bbolt database and indexes them with bleve.
// Record IDs are ULIDs, so byte order is creation order.
type BoltStore struct {
	db    *bolt.DB
	index bleve.Index
}

// OpenBoltStore opens or creates the store in dir.
func OpenBoltStore(dir string) (*BoltStore, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("creating history dir: %w", err)
	}
	db, err := bolt.Open(filepath.Join(dir, dbName), 0o600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening history db: %w", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		for _, bucket := range [][]byte{bucketRecords, bucketUsers} {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	index, err := openIndex(filepath.Join(dir, indexName))
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return &BoltStore{db: db, index: index}, nil
}

func openIndex(path string) (bleve.Index, error) {
	var index bleve.Index
	var err error
	if _, statErr := os.Stat(path); os.IsNotExist(statErr) {
		m, mapErr := buildIndexMapping()
		if mapErr != nil {
			return nil, mapErr
		}
		index, err = bleve.New(path, m)
	} else {
		index, err = bleve.Open(path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create/open history index: %w", err)
	}
	return index, nil
}

func buildIndexMapping() (mapping.IndexMapping, error) {
	indexMapping := bleve.NewIndexMapping()
	err := indexMapping.AddCustomAnalyzer("standard_lower", map[string]any{
		"type":      custom.Name,
		"tokenizer": unicode.Name,
		"token_filters": []string{
			lowercase.Name,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create standard analyzer: %w", err)
	}
	indexMapping.DefaultAnalyzer = "standard_lower"

	recordMapping := bleve.NewDocumentMapping()

	for _, name := range []string{"file", "messages", "improvements"} {
		f := bleve.NewTextFieldMapping()
		f.Analyzer = "standard_lower"
		recordMapping.AddFieldMappingsAt(name, f)
	}

	for _, name := range []string{"rules", "severities", "state"} {
		f := bleve.NewTextFieldMapping()
		f.Analyzer = keyword.Name
		recordMapping.AddFieldMappingsAt(name, f)
	}

	userField := bleve.NewTextFieldMapping()
	userField.Analyzer = keyword.Name
	userField.IncludeInAll = false
	recordMapping.AddFieldMappingsAt("user", userField)

	indexMapping.AddDocumentMapping("record", recordMapping)
	indexMapping.DefaultMapping = recordMapping
	return indexMapping, nil
}

// searchDocument is the structure indexed in bleve.
type searchDocument struct {
	User         string   `json:"user"`
	File         string   `json:"file"`
	State        string   `json:"state"`
	Messages     []string `json:"messages"`
	Improvements []string `json:"improvements"`
	Rules        []string `json:"rules"`
	Severities   []string `json:"severities"`
}

func newSearchDocument(rec Record) searchDocument {
	doc := searchDocument{
		User:  rec.User,
		File:  rec.FileName,
		State: rec.State,
	}
	for _, f := range rec.Findings {
		doc.Messages = append(doc.Messages, f.Message)
		if f.Improvement != "" {
			doc.Improvements = append(doc.Improvements, f.Improvement)
		}
		if f.Rule != "" {
			doc.Rules = append(doc.Rules, f.Rule)
		}
		doc.Severities = append(doc.Severities, string(f.Severity))
	}
	return doc
}

func (s *BoltStore) Save(ctx context.Context, rec Record) (Record, error) {
	if err := ctx.Err(); err != nil {
		return Record{}, err
	}
	rec = prepare(rec)
	if rec.User == "" {
		return Record{}, errors.New("history record without user")
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return Record{}, fmt.Errorf("encoding history record: %w", err)
	}
	err = s.db.Update(func(tx *bolt.Tx) error {
		if err := tx.Bucket(bucketRecords).Put([]byte(rec.ID), data); err != nil {
			return err
		}
		ub, err := tx.Bucket(bucketUsers).CreateBucketIfNotExists([]byte(rec.User))
		if err != nil {
			return err
		}
		return ub.Put([]byte(rec.ID), nil)
	})
	if err != nil {
		return Record{}, fmt.Errorf("saving history record: %w", err)
	}
	if err := s.index.Index(rec.ID, newSearchDocument(rec)); err != nil {
		return Record{}, fmt.Errorf("indexing history record: %w", err)
	}
	return rec, nil
}

// Get returns a record or model.ErrNotFound.
func (s *BoltStore) Get(_ context.Context, id string) (Record, error) {
	var rec Record
	err := s.db.View(func(tx *bolt.Tx) error {
		var err error
		rec, err = get(tx, id)
		return err
	})
	return rec, err
}

func get(tx *bolt.Tx, id string) (Record, error) {
	data := tx.Bucket(bucketRecords).Get([]byte(id))
	if data == nil {
		return Record{}, fmt.Errorf("history record %q: %w", id, model.ErrNotFound)
	}
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return Record{}, fmt.Errorf("decoding history record %q: %w", id, err)
	}
	return rec, nil
}

// List returns records of a user, newest first.
func (s *BoltStore) List(_ context.Context, user string, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	ret := []Record{}
	err := s.db.View(func(tx *bolt.Tx) error {
		ub := tx.Bucket(bucketUsers).Bucket([]byte(user))
		if ub == nil {
			return nil
		}
		c := ub.Cursor()
		for k, _ := c.Last(); k != nil && len(ret) < limit; k, _ = c.Prev() {
			rec, err := get(tx, string(k))
			if err != nil {
				return err
			}
			ret = append(ret, rec)
		}
		return nil
	})
	return ret, err
}

// Search runs a bleve query string over file names, messages, improvements and
// rules. An empty user searches records of all users, an empty query matches all.
func (s *BoltStore) Search(ctx context.Context, queryStr, user string, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	var queries []query.Query
	if q := strings.TrimSpace(queryStr); q != "" {
		queries = append(queries, bleve.NewQueryStringQuery(q))
	}
	if user != "" {
		q := bleve.NewTermQuery(user)
		q.SetField("user")
		queries = append(queries, q)
	}

	var searchQuery query.Query
	switch len(queries) {
	case 0:
		searchQuery = bleve.NewMatchAllQuery()
	case 1:
		searchQuery = queries[0]
	default:
		searchQuery = bleve.NewConjunctionQuery(queries...)
	}

	req := bleve.NewSearchRequestOptions(searchQuery, limit, 0, false)
	result, err := s.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("history search failed: %w", err)
	}

	ret := make([]Record, 0, len(result.Hits))
	for _, hit := range result.Hits {
		rec, err := s.Get(ctx, hit.ID)
		if errors.Is(err, model.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		ret = append(ret, rec)
	}
	return ret, nil
}

// Delete removes a record or returns model.ErrNotFound.
func (s *BoltStore) Delete(_ context.Context, id string) error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		rec, err := get(tx, id)
		if err != nil {
			return err
		}
		if err := tx.Bucket(bucketRecords).Delete([]byte(id)); err != nil {
			return err
		}
		if ub := tx.Bucket(bucketUsers).Bucket([]byte(rec.User)); ub != nil {
			return ub.Delete([]byte(id))
		}
		return nil
	})
	if err != nil {
		return err
	}
	return s.index.Delete(id)
}

func (s *BoltStore) Close() error {
	return errors.Join(s.index.Close(), s.db.Close())
}
