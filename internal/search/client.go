package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/elastic/go-elasticsearch/v9"
)

// IndexVideos is the Elasticsearch index holding video documents
const IndexVideos = "videos"

// Client wraps the Elasticsearch client with Clipstream-specific functionality
type Client struct {
	es *elasticsearch.Client
}

// NewClient creates a new Elasticsearch client
func NewClient() (*Client, error) {
	esURL := os.Getenv("ELASTICSEARCH_URL")
	if esURL == "" {
		esURL = "http://localhost:9200"
	}

	cfg := elasticsearch.Config{
		Addresses: []string{esURL},
	}

	es, err := elasticsearch.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create Elasticsearch client: %w", err)
	}

	client := &Client{es: es}

	// Verify connection
	if _, err = es.Info(); err != nil {
		return nil, fmt.Errorf("failed to connect to Elasticsearch: %w", err)
	}

	return client, nil
}

// InitializeIndices creates the videos index with its mapping
func (c *Client) InitializeIndices(ctx context.Context) error {
	mapping := map[string]interface{}{
		"mappings": map[string]interface{}{
			"properties": map[string]interface{}{
				"id": map[string]interface{}{
					"type": "keyword",
				},
				"user_id": map[string]interface{}{
					"type": "keyword",
				},
				"username": map[string]interface{}{
					"type": "keyword",
				},
				"title": map[string]interface{}{
					"type": "text",
				},
				"description": map[string]interface{}{
					"type": "text",
				},
				"tags": map[string]interface{}{
					"type": "keyword",
				},
				"duration": map[string]interface{}{
					"type": "float",
				},
				"like_count": map[string]interface{}{
					"type": "integer",
				},
				"view_count": map[string]interface{}{
					"type": "long",
				},
				"comment_count": map[string]interface{}{
					"type": "integer",
				},
				"created_at": map[string]interface{}{
					"type": "date",
				},
			},
		},
	}

	return c.createIndex(ctx, IndexVideos, mapping)
}

// createIndex creates an Elasticsearch index with the given mapping
func (c *Client) createIndex(ctx context.Context, indexName string, mapping map[string]interface{}) error {
	res, err := c.es.Indices.Exists([]string{indexName})
	if err != nil {
		return fmt.Errorf("failed to check if index exists: %w", err)
	}
	res.Body.Close()

	// Index already present, skip creation
	if res.StatusCode == 200 {
		return nil
	}

	mappingJSON, err := json.Marshal(mapping)
	if err != nil {
		return fmt.Errorf("failed to marshal mapping: %w", err)
	}

	res, err = c.es.Indices.Create(indexName,
		c.es.Indices.Create.WithBody(bytes.NewReader(mappingJSON)),
		c.es.Indices.Create.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		var errResp map[string]interface{}
		if err := json.NewDecoder(res.Body).Decode(&errResp); err != nil {
			return fmt.Errorf("error response [%s]", res.Status())
		}
		return fmt.Errorf("error creating index: [%s] %v", res.Status(), errResp["error"])
	}

	return nil
}

// IndexVideo indexes a video document for search
func (c *Client) IndexVideo(ctx context.Context, videoID string, doc map[string]interface{}) error {
	body, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal video document: %w", err)
	}

	res, err := c.es.Index(IndexVideos, bytes.NewReader(body),
		c.es.Index.WithDocumentID(videoID),
		c.es.Index.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("failed to index video: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		var errResp map[string]interface{}
		if err := json.NewDecoder(res.Body).Decode(&errResp); err != nil {
			return fmt.Errorf("error response [%s]", res.Status())
		}
		return fmt.Errorf("error indexing video: [%s] %v", res.Status(), errResp["error"])
	}

	return nil
}

// DeleteVideo removes a video document from the index
func (c *Client) DeleteVideo(ctx context.Context, videoID string) error {
	res, err := c.es.Delete(IndexVideos, videoID,
		c.es.Delete.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("failed to delete video from index: %w", err)
	}
	defer res.Body.Close()

	// 404 means it was never indexed, which is fine
	if res.IsError() && res.StatusCode != 404 {
		return fmt.Errorf("error deleting video from index: [%s]", res.Status())
	}

	return nil
}

// SearchVideosParams holds search parameters for video search
type SearchVideosParams struct {
	Query  string
	Tags   []string
	Limit  int
	Offset int
}

// SearchVideosResult contains video search results
type SearchVideosResult struct {
	Videos []VideoSearchHit `json:"videos"`
	Total  int              `json:"total"`
}

// VideoSearchHit represents a single video search hit
type VideoSearchHit struct {
	ID           string   `json:"id"`
	UserID       string   `json:"user_id"`
	Username     string   `json:"username"`
	Title        string   `json:"title"`
	Tags         []string `json:"tags"`
	LikeCount    int      `json:"like_count"`
	ViewCount    int64    `json:"view_count"`
	CommentCount int      `json:"comment_count"`
	CreatedAt    string   `json:"created_at"`
	Score        float64  `json:"score"`
}

// SearchVideos searches the catalog with text relevance boosted by
// engagement and recency
func (c *Client) SearchVideos(ctx context.Context, params SearchVideosParams) (*SearchVideosResult, error) {
	mustClauses := []map[string]interface{}{}
	shouldClauses := []map[string]interface{}{}

	if params.Query != "" {
		shouldClauses = append(shouldClauses,
			map[string]interface{}{
				"match": map[string]interface{}{
					"title": map[string]interface{}{
						"query":     params.Query,
						"boost":     3.0,
						"fuzziness": "AUTO",
					},
				},
			},
			map[string]interface{}{
				"match": map[string]interface{}{
					"description": map[string]interface{}{
						"query":     params.Query,
						"boost":     1.5,
						"fuzziness": "AUTO",
					},
				},
			},
			map[string]interface{}{
				"match": map[string]interface{}{
					"tags": map[string]interface{}{
						"query": params.Query,
						"boost": 2.0,
					},
				},
			},
			map[string]interface{}{
				"match": map[string]interface{}{
					"username": map[string]interface{}{
						"query": params.Query,
						"boost": 1.0,
					},
				},
			},
		)
	}

	if len(params.Tags) > 0 {
		mustClauses = append(mustClauses, map[string]interface{}{
			"terms": map[string]interface{}{
				"tags": params.Tags,
			},
		})
	}

	var baseQuery map[string]interface{}
	if len(shouldClauses) > 0 || len(mustClauses) > 0 {
		boolQuery := map[string]interface{}{}
		if len(mustClauses) > 0 {
			boolQuery["must"] = mustClauses
		}
		if len(shouldClauses) > 0 {
			boolQuery["should"] = shouldClauses
			boolQuery["minimum_should_match"] = 1
		}
		baseQuery = map[string]interface{}{
			"bool": boolQuery,
		}
	} else {
		baseQuery = map[string]interface{}{
			"match_all": map[string]interface{}{},
		}
	}

	// Relevance multiplied by engagement and a 30-day recency decay
	scoredQuery := map[string]interface{}{
		"function_score": map[string]interface{}{
			"query": baseQuery,
			"functions": []map[string]interface{}{
				{
					"field_value_factor": map[string]interface{}{
						"field":    "like_count",
						"factor":   3.0,
						"modifier": "log1p",
					},
				},
				{
					"field_value_factor": map[string]interface{}{
						"field":    "view_count",
						"factor":   1.0,
						"modifier": "log1p",
					},
				},
				{
					"exp": map[string]interface{}{
						"created_at": map[string]interface{}{
							"origin": "now",
							"scale":  "30d",
							"decay":  0.5,
						},
					},
					"weight": 0.5,
				},
			},
			"score_mode": "sum",
			"boost_mode": "multiply",
		},
	}

	query := map[string]interface{}{
		"query": scoredQuery,
		"from":  params.Offset,
		"size":  params.Limit,
		"sort": []map[string]interface{}{
			{"_score": map[string]interface{}{"order": "desc"}},
			{"created_at": map[string]interface{}{"order": "desc"}},
		},
	}

	return c.executeVideoSearch(ctx, query)
}

// executeVideoSearch executes a video search query
func (c *Client) executeVideoSearch(ctx context.Context, query map[string]interface{}) (*SearchVideosResult, error) {
	queryJSON, err := json.Marshal(query)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal search query: %w", err)
	}

	res, err := c.es.Search(
		c.es.Search.WithContext(ctx),
		c.es.Search.WithIndex(IndexVideos),
		c.es.Search.WithBody(bytes.NewReader(queryJSON)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to execute search: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		var errResp map[string]interface{}
		if err := json.NewDecoder(res.Body).Decode(&errResp); err != nil {
			return nil, fmt.Errorf("error response [%s]", res.Status())
		}
		return nil, fmt.Errorf("error searching videos: [%s] %v", res.Status(), errResp["error"])
	}

	var searchResp struct {
		Hits struct {
			Total struct {
				Value int `json:"value"`
			} `json:"total"`
			Hits []struct {
				ID     string                 `json:"_id"`
				Score  float64                `json:"_score"`
				Source map[string]interface{} `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}

	if err := json.NewDecoder(res.Body).Decode(&searchResp); err != nil {
		return nil, fmt.Errorf("failed to decode search response: %w", err)
	}

	videos := make([]VideoSearchHit, 0, len(searchResp.Hits.Hits))
	for _, hit := range searchResp.Hits.Hits {
		v := VideoSearchHit{
			ID:    hit.ID,
			Score: hit.Score,
		}

		if userID, ok := hit.Source["user_id"].(string); ok {
			v.UserID = userID
		}
		if username, ok := hit.Source["username"].(string); ok {
			v.Username = username
		}
		if title, ok := hit.Source["title"].(string); ok {
			v.Title = title
		}
		if tags, ok := hit.Source["tags"].([]interface{}); ok {
			v.Tags = make([]string, 0, len(tags))
			for _, t := range tags {
				if ts, ok := t.(string); ok {
					v.Tags = append(v.Tags, ts)
				}
			}
		}
		if likeCount, ok := hit.Source["like_count"].(float64); ok {
			v.LikeCount = int(likeCount)
		}
		if viewCount, ok := hit.Source["view_count"].(float64); ok {
			v.ViewCount = int64(viewCount)
		}
		if commentCount, ok := hit.Source["comment_count"].(float64); ok {
			v.CommentCount = int(commentCount)
		}
		if createdAt, ok := hit.Source["created_at"].(string); ok {
			v.CreatedAt = createdAt
		}

		videos = append(videos, v)
	}

	return &SearchVideosResult{
		Videos: videos,
		Total:  searchResp.Hits.Total.Value,
	}, nil
}
