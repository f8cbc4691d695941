package errorreport

import (
	"context"
	"encoding/json"
	"time"

	redis "github.com/redis/go-redis/v9"

	"github.com/KirkDiggler/errtransform/internal/errors"
	"github.com/KirkDiggler/errtransform/internal/pkg/clock"
	"github.com/KirkDiggler/errtransform/internal/pkg/idgen"
	redisclient "github.com/KirkDiggler/errtransform/internal/redis"
)

const (
	// Key pattern: error_report:{id}
	reportKeyPrefix = "error_report:"
	// Key pattern: error_report:kind:{kind}
	kindIndexPrefix = "error_report:kind:"
	allIndexKey     = "error_report:all"

	defaultTTL        = 7 * 24 * time.Hour
	defaultMaxPerKind = 500
	defaultListLimit  = 50

	// Error messages
	errKindEmpty = "kind cannot be empty"
	errIDEmpty   = "report ID cannot be empty"
)

// Config holds the configuration for the Redis repository
type Config struct {
	Client      redisclient.Client
	Clock       clock.Clock
	IDGenerator idgen.Generator

	// TTL is how long a report is kept, 7 days when zero
	TTL time.Duration
	// MaxPerKind caps each index list, 500 when zero
	MaxPerKind int
}

// Validate ensures all required dependencies are provided
func (c *Config) Validate() error {
	vb := errors.NewValidationBuilder()
	if c.Client == nil {
		vb.RequiredField("client")
	}
	if c.Clock == nil {
		vb.RequiredField("clock")
	}
	if c.IDGenerator == nil {
		vb.RequiredField("id_generator")
	}
	if c.TTL < 0 {
		vb.Field("ttl", "cannot be negative")
	}
	if c.MaxPerKind < 0 {
		vb.Field("max_per_kind", "cannot be negative")
	}
	return vb.Build()
}

type redisRepository struct {
	client     redisclient.Client
	clock      clock.Clock
	idGen      idgen.Generator
	ttl        time.Duration
	maxPerKind int
}

// NewRedisRepository creates a new Redis repository for error reports
func NewRedisRepository(cfg *Config) (Repository, error) {
	if cfg == nil {
		return nil, errors.InvalidArgument("config cannot be nil")
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid config")
	}

	repo := &redisRepository{
		client:     cfg.Client,
		clock:      cfg.Clock,
		idGen:      cfg.IDGenerator,
		ttl:        cfg.TTL,
		maxPerKind: cfg.MaxPerKind,
	}
	if repo.ttl == 0 {
		repo.ttl = defaultTTL
	}
	if repo.maxPerKind == 0 {
		repo.maxPerKind = defaultMaxPerKind
	}
	return repo, nil
}

// Ensure redisRepository implements Repository
var _ Repository = (*redisRepository)(nil)

// Create stores the report and pushes it onto the kind and global indexes
func (r *redisRepository) Create(ctx context.Context, input CreateInput) (*CreateOutput, error) {
	if input.Kind == "" {
		return nil, errors.InvalidArgument(errKindEmpty)
	}

	report := &Report{
		ID:         r.idGen.Generate(),
		Kind:       input.Kind,
		Code:       input.Code,
		Message:    input.Message,
		Error:      input.Error,
		Original:   input.Original,
		Group:      input.Group,
		Action:     input.Action,
		Stack:      input.Stack,
		Meta:       input.Meta,
		ReportedAt: r.clock.Now(),
	}

	data, err := json.Marshal(report)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to marshal report")
	}

	pipe := r.client.TxPipeline()
	pipe.Set(ctx, reportKeyPrefix+report.ID, data, r.ttl)
	for _, index := range []string{kindIndexPrefix + report.Kind, allIndexKey} {
		pipe.LPush(ctx, index, report.ID)
		pipe.LTrim(ctx, index, 0, int64(r.maxPerKind-1))
		pipe.Expire(ctx, index, r.ttl)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return nil, errors.Wrapf(err, "failed to store report in Redis")
	}

	return &CreateOutput{Report: report}, nil
}

// Get retrieves a report by ID
func (r *redisRepository) Get(ctx context.Context, input GetInput) (*GetOutput, error) {
	if input.ID == "" {
		return nil, errors.InvalidArgument(errIDEmpty)
	}

	data, err := r.client.Get(ctx, reportKeyPrefix+input.ID).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, errors.NotFoundf("report %s not found", input.ID)
		}
		return nil, errors.Wrapf(err, "failed to get report from Redis")
	}

	var report Report
	if err := json.Unmarshal([]byte(data), &report); err != nil {
		return nil, errors.Wrapf(err, "failed to unmarshal report")
	}

	return &GetOutput{Report: &report}, nil
}

// List returns up to Limit of the newest reports. Index entries whose
// report already expired are skipped.
func (r *redisRepository) List(ctx context.Context, input ListInput) (*ListOutput, error) {
	limit := input.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > r.maxPerKind {
		limit = r.maxPerKind
	}

	index := allIndexKey
	if input.Kind != "" {
		index = kindIndexPrefix + input.Kind
	}

	ids, err := r.client.LRange(ctx, index, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read report index")
	}
	if len(ids) == 0 {
		return &ListOutput{Reports: []*Report{}}, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = reportKeyPrefix + id
	}

	values, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, errors.Wrapf(err, "failed to get reports from Redis")
	}

	reports := make([]*Report, 0, len(values))
	for i, value := range values {
		data, ok := value.(string)
		if !ok {
			continue
		}
		var report Report
		if err := json.Unmarshal([]byte(data), &report); err != nil {
			return nil, errors.Wrapf(err, "failed to unmarshal report %s", ids[i])
		}
		reports = append(reports, &report)
	}

	return &ListOutput{Reports: reports}, nil
}
