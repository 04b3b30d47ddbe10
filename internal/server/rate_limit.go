package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	obscontext "github.com/smallbiznis/happyinline/internal/observability/context"
	"github.com/smallbiznis/happyinline/internal/observability/logger"
	"github.com/smallbiznis/happyinline/internal/ratelimit"
	subscriptiondomain "github.com/smallbiznis/happyinline/internal/subscription/domain"
	"go.uber.org/zap"
)

const (
	rateLimitReasonOwnerRate = "owner-rate"
	rateLimitReasonOwnerBusy = "owner-busy"
)

// maxOwnerBodyBytes bounds the body peeked for the owner key; billing requests are
// a handful of identifiers.
const maxOwnerBodyBytes = 64 << 10

type ownerRateLimitKey struct {
	UserID         string `json:"userId"`
	OwnerID        string `json:"ownerId"`
	ShopID         string `json:"shopId"`
	SubscriptionID string `json:"subscriptionId"`
}

func (k ownerRateLimitKey) empty() bool {
	return strings.TrimSpace(k.UserID) == "" &&
		strings.TrimSpace(k.OwnerID) == "" &&
		strings.TrimSpace(k.ShopID) == "" &&
		strings.TrimSpace(k.SubscriptionID) == ""
}

// OwnerRateLimit tags the request with its owner, throttles billing mutations per
// owner and holds the owner lock for the rest of the request. Whatever identifier
// the body carries is resolved to the owner ID first, so every endpoint contends on
// the same lock. Requests without an owner key pass through and are rejected by
// validation.
func (s *Server) OwnerRateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		ref, err := readOwnerKey(c)
		if err != nil {
			AbortWithError(c, ErrInvalidRequest)
			return
		}
		if ref.empty() {
			c.Next()
			return
		}
		if !s.ownerLimiter.Enabled() {
			s.tagOwner(c, firstNonEmpty(ref.UserID, ref.OwnerID, ref.ShopID, ref.SubscriptionID))
			c.Next()
			return
		}

		key, err := s.subscriptionSvc.ResolveOwner(c.Request.Context(), subscriptiondomain.OwnerRef{
			OwnerID:        firstNonEmpty(ref.UserID, ref.OwnerID),
			ShopID:         ref.ShopID,
			SubscriptionID: ref.SubscriptionID,
		})
		if err != nil {
			logger.FromContext(c.Request.Context()).Warn("owner lookup failed", zap.Error(err))
			AbortWithError(c, ErrServiceUnavailable)
			return
		}
		s.tagOwner(c, key)
		ctx := c.Request.Context()
		endpoint := normalizeRateLimitEndpoint(c)

		res, err := s.ownerLimiter.Allow(ctx, key)
		if err != nil {
			logger.FromContext(ctx).Warn("owner rate limit check failed", zap.Error(err))
			AbortWithError(c, ErrServiceUnavailable)
			return
		}
		if !res.Allowed {
			retryAfter := int(res.RetryAfter.Seconds())
			if retryAfter < 1 {
				retryAfter = 1
			}
			c.Header("Retry-After", strconv.Itoa(retryAfter))
			s.denyOwnerRequest(c, endpoint, rateLimitReasonOwnerRate, ratelimit.ErrRateLimited)
			return
		}

		release, err := s.ownerLimiter.Acquire(ctx, key)
		if err != nil {
			if errors.Is(err, ratelimit.ErrOwnerBusy) {
				s.denyOwnerRequest(c, endpoint, rateLimitReasonOwnerBusy, err)
				return
			}
			logger.FromContext(ctx).Warn("owner lock failed", zap.Error(err))
			AbortWithError(c, ErrServiceUnavailable)
			return
		}
		defer release()

		c.Next()
	}
}

func (s *Server) tagOwner(c *gin.Context, ownerID string) {
	c.Request = c.Request.WithContext(obscontext.WithOwnerID(c.Request.Context(), ownerID))
	c.Set("owner_id", ownerID)
}

func (s *Server) denyOwnerRequest(c *gin.Context, endpoint, reason string, err error) {
	ctx := c.Request.Context()
	logger.FromContext(ctx).Warn("owner request rejected",
		zap.String("reason", reason),
		zap.String("endpoint", endpoint),
	)
	s.obsMetrics.RecordRateLimitDenied(ctx, endpoint, reason)
	c.Header("X-Rate-Limited-Reason", reason)
	AbortWithError(c, err)
}

// readOwnerKey peeks at the JSON body and restores it for the handler. Bodies
// larger than maxOwnerBodyBytes are rejected.
func readOwnerKey(c *gin.Context) (ownerRateLimitKey, error) {
	var payload ownerRateLimitKey
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxOwnerBodyBytes+1))
	if err != nil {
		return payload, err
	}
	if len(body) > maxOwnerBodyBytes {
		return payload, ErrInvalidRequest
	}
	c.Request.Body = io.NopCloser(bytes.NewBuffer(body))
	if len(body) == 0 {
		return payload, nil
	}

	if err := json.Unmarshal(body, &payload); err != nil {
		return ownerRateLimitKey{}, nil
	}
	return payload, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

func normalizeRateLimitEndpoint(c *gin.Context) string {
	endpoint := strings.TrimSpace(c.FullPath())
	if endpoint == "" {
		endpoint = strings.TrimSpace(c.Request.URL.Path)
	}
	if endpoint == "" {
		endpoint = "unknown"
	}
	return endpoint
}
