package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"stashpad/types"
)

// Key layout shared with the other services that read this store:
// articles under article:<id>, per-user id lists under user:<u>:articles,
// settings under user:<u>:settings, encrypted tokens under
// connection:<id>:tokens.
func articleKey(id string) string          { return "article:" + id }
func userArticlesKey(userID string) string { return "user:" + userID + ":articles" }
func userSettingsKey(userID string) string { return "user:" + userID + ":settings" }
func userConnectionsKey(u string) string   { return "user:" + u + ":connections" }
func connectionKey(id string) string       { return "connection:" + id }
func connectionTokensKey(id string) string { return "connection:" + id + ":tokens" }
func integrityKey(articleID string) string { return "integrity:" + articleID }

// Store is the Redis-backed persistence layer for articles, settings and
// storage connections.
type Store struct {
	rdb    *redis.Client
	cipher *TokenCipher
}

// NewStore connects to Redis and verifies connectivity.
func NewStore(addr, password string, db int, cipher *TokenCipher) (*Store, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", addr, err)
	}

	return &Store{rdb: client, cipher: cipher}, nil
}

// NewStoreWithClient wraps an existing client (used by tests).
func NewStoreWithClient(client *redis.Client, cipher *TokenCipher) *Store {
	return &Store{rdb: client, cipher: cipher}
}

// Close releases the Redis connection.
func (s *Store) Close() error { return s.rdb.Close() }

// SaveArticle persists an article record.
func (s *Store) SaveArticle(ctx context.Context, article *types.Article) error {
	data, err := json.Marshal(article)
	if err != nil {
		return fmt.Errorf("failed to encode article: %w", err)
	}
	if err := s.rdb.Set(ctx, articleKey(article.ID), data, 0).Err(); err != nil {
		return fmt.Errorf("failed to save article %s: %w", article.ID, err)
	}
	return nil
}

// GetArticle loads one article; a missing id returns (nil, nil).
func (s *Store) GetArticle(ctx context.Context, id string) (*types.Article, error) {
	data, err := s.rdb.Get(ctx, articleKey(id)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load article %s: %w", id, err)
	}

	var article types.Article
	if err := json.Unmarshal(data, &article); err != nil {
		return nil, fmt.Errorf("failed to decode article %s: %w", id, err)
	}
	return &article, nil
}

// DeleteArticle removes the record and its listing entry.
func (s *Store) DeleteArticle(ctx context.Context, userID, id string) error {
	if err := s.rdb.Del(ctx, articleKey(id)).Err(); err != nil {
		return fmt.Errorf("failed to delete article %s: %w", id, err)
	}
	return s.removeFromList(ctx, userArticlesKey(userID), id)
}

// AddArticleToUser appends an article id to the user's listing.
func (s *Store) AddArticleToUser(ctx context.Context, userID, articleID string) error {
	ids, err := s.ListArticleIDs(ctx, userID)
	if err != nil {
		return err
	}
	for _, existing := range ids {
		if existing == articleID {
			return nil
		}
	}
	return s.saveList(ctx, userArticlesKey(userID), append(ids, articleID))
}

// ListArticleIDs returns the user's saved article ids, newest last.
func (s *Store) ListArticleIDs(ctx context.Context, userID string) ([]string, error) {
	data, err := s.rdb.Get(ctx, userArticlesKey(userID)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load article list for user %s: %w", userID, err)
	}

	var ids []string
	if err := json.Unmarshal(data, &ids); err != nil {
		return nil, fmt.Errorf("failed to decode article list for user %s: %w", userID, err)
	}
	return ids, nil
}

// ListArticles loads every article in the user's listing. One KV read per
// id; fine at personal-library scale.
func (s *Store) ListArticles(ctx context.Context, userID string) ([]*types.Article, error) {
	ids, err := s.ListArticleIDs(ctx, userID)
	if err != nil {
		return nil, err
	}

	articles := make([]*types.Article, 0, len(ids))
	for _, id := range ids {
		article, err := s.GetArticle(ctx, id)
		if err != nil {
			return nil, err
		}
		if article != nil {
			articles = append(articles, article)
		}
	}
	return articles, nil
}

// GetSettings loads the user's preferences; absent settings are zero-valued.
func (s *Store) GetSettings(ctx context.Context, userID string) (*types.UserSettings, error) {
	data, err := s.rdb.Get(ctx, userSettingsKey(userID)).Bytes()
	if err == redis.Nil {
		return &types.UserSettings{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load settings for user %s: %w", userID, err)
	}

	var settings types.UserSettings
	if err := json.Unmarshal(data, &settings); err != nil {
		return nil, fmt.Errorf("failed to decode settings for user %s: %w", userID, err)
	}
	return &settings, nil
}

// SaveSettings persists the user's preferences.
func (s *Store) SaveSettings(ctx context.Context, userID string, settings *types.UserSettings) error {
	data, err := json.Marshal(settings)
	if err != nil {
		return fmt.Errorf("failed to encode settings: %w", err)
	}
	return s.rdb.Set(ctx, userSettingsKey(userID), data, 0).Err()
}

// SaveConnection persists a storage-connection record and its listing entry.
func (s *Store) SaveConnection(ctx context.Context, conn *types.StorageConnection) error {
	data, err := json.Marshal(conn)
	if err != nil {
		return fmt.Errorf("failed to encode connection: %w", err)
	}
	if err := s.rdb.Set(ctx, connectionKey(conn.ID), data, 0).Err(); err != nil {
		return fmt.Errorf("failed to save connection %s: %w", conn.ID, err)
	}

	ids, err := s.listStrings(ctx, userConnectionsKey(conn.UserID))
	if err != nil {
		return err
	}
	for _, existing := range ids {
		if existing == conn.ID {
			return nil
		}
	}
	return s.saveList(ctx, userConnectionsKey(conn.UserID), append(ids, conn.ID))
}

// GetConnection loads one connection record; missing ids return (nil, nil).
func (s *Store) GetConnection(ctx context.Context, id string) (*types.StorageConnection, error) {
	data, err := s.rdb.Get(ctx, connectionKey(id)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load connection %s: %w", id, err)
	}

	var conn types.StorageConnection
	if err := json.Unmarshal(data, &conn); err != nil {
		return nil, fmt.Errorf("failed to decode connection %s: %w", id, err)
	}
	return &conn, nil
}

// ActiveConnection returns the user's first active storage connection, or
// nil when cloud upload is not configured.
func (s *Store) ActiveConnection(ctx context.Context, userID string) (*types.StorageConnection, error) {
	ids, err := s.listStrings(ctx, userConnectionsKey(userID))
	if err != nil {
		return nil, err
	}

	for _, id := range ids {
		conn, err := s.GetConnection(ctx, id)
		if err != nil {
			return nil, err
		}
		if conn != nil && conn.Active {
			return conn, nil
		}
	}
	return nil, nil
}

// SaveTokens encrypts and stores a connection's OAuth token material.
func (s *Store) SaveTokens(ctx context.Context, connectionID string, tokens *TokenSet) error {
	sealed, err := s.cipher.Seal(tokens)
	if err != nil {
		return fmt.Errorf("failed to encrypt tokens for connection %s: %w", connectionID, err)
	}
	return s.rdb.Set(ctx, connectionTokensKey(connectionID), sealed, 0).Err()
}

// GetTokens decrypts a connection's token material. The decrypted value is
// for the single operation that needed it and must not be cached.
func (s *Store) GetTokens(ctx context.Context, connectionID string) (*TokenSet, error) {
	sealed, err := s.rdb.Get(ctx, connectionTokensKey(connectionID)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load tokens for connection %s: %w", connectionID, err)
	}
	return s.cipher.Open(sealed)
}

// AppendIntegrityCheck writes an audit-trail entry. Entries are never read
// back for correctness of later operations.
func (s *Store) AppendIntegrityCheck(ctx context.Context, check types.IntegrityCheck) error {
	data, err := json.Marshal(check)
	if err != nil {
		return fmt.Errorf("failed to encode integrity check: %w", err)
	}
	return s.rdb.RPush(ctx, integrityKey(check.ArticleID), data).Err()
}

func (s *Store) listStrings(ctx context.Context, key string) ([]string, error) {
	data, err := s.rdb.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load list %s: %w", key, err)
	}

	var out []string
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("failed to decode list %s: %w", key, err)
	}
	return out, nil
}

func (s *Store) saveList(ctx context.Context, key string, values []string) error {
	data, err := json.Marshal(values)
	if err != nil {
		return fmt.Errorf("failed to encode list %s: %w", key, err)
	}
	return s.rdb.Set(ctx, key, data, 0).Err()
}

func (s *Store) removeFromList(ctx context.Context, key, value string) error {
	values, err := s.listStrings(ctx, key)
	if err != nil {
		return err
	}

	out := values[:0]
	for _, v := range values {
		if v != value {
			out = append(out, v)
		}
	}
	return s.saveList(ctx, key, out)
}
