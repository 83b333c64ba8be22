package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"giveaway-core-backend/internal/common/config"
	apperrors "giveaway-core-backend/internal/common/errors"
)

const serviceName = "giveaway-core"

// Clients bundles one client per collaborator, each with its own
// circuit breaker.
type Clients struct {
	Auth        AuthClient
	Channel     ChannelClient
	Participant ParticipantClient
	Bot         BotClient
	Media       MediaClient
}

// NewHTTPClients builds the HTTP gateway from configuration. The
// per-attempt timeout lives in the policy, so the shared http.Client
// carries none of its own.
func NewHTTPClients(cfg *config.Config) *Clients {
	httpClient := &http.Client{}

	policyCfg := PolicyConfig{
		Timeout:          cfg.Collaborators.Timeout,
		MaxRetries:       cfg.Collaborators.MaxRetries,
		BaseDelay:        cfg.Collaborators.RetryBaseDelay,
		BreakerThreshold: cfg.Collaborators.BreakerThreshold,
		BreakerCooldown:  cfg.Collaborators.BreakerCooldown,
	}

	caller := func(name, baseURL string) *httpCaller {
		return &httpCaller{
			collaborator: name,
			baseURL:      baseURL,
			client:       httpClient,
			policy:       NewPolicy(name, policyCfg),
		}
	}

	return &Clients{
		Auth:        &authClient{caller("auth", cfg.Collaborators.AuthURL)},
		Channel:     &channelClient{caller("channel", cfg.Collaborators.ChannelURL)},
		Participant: &participantClient{caller("participant", cfg.Collaborators.ParticipantURL)},
		Bot:         &botClient{caller("bot", cfg.Collaborators.BotURL)},
		Media:       &mediaClient{caller("media", cfg.Collaborators.MediaURL)},
	}
}

type httpCaller struct {
	collaborator string
	baseURL      string
	client       *http.Client
	policy       *Policy
}

type apiEnvelope struct {
	Success   bool   `json:"success"`
	Error     string `json:"error,omitempty"`
	ErrorCode string `json:"error_code,omitempty"`
}

// call runs one collaborator request under the policy. ambiguous marks
// non-idempotent calls: once the request is on the wire, any failure
// must surface as UNKNOWN rather than a plain transient one.
func (c *httpCaller) call(ctx context.Context, operation, method, path string, body, out interface{}, ambiguous bool) error {
	return c.policy.Do(ctx, operation, func(ctx context.Context) error {
		return c.doRequest(ctx, method, path, body, out, ambiguous)
	})
}

func (c *httpCaller) doRequest(ctx context.Context, method, path string, body, out interface{}, ambiguous bool) error {
	var reqBody io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to encode request body")
		}
		reqBody = bytes.NewBuffer(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to build request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Service-Name", serviceName)

	resp, err := c.client.Do(req)
	if err != nil {
		if ambiguous {
			// The collaborator may have accepted the request before the
			// connection died. Only the reconciler can tell.
			return apperrors.Wrapf(err, apperrors.ErrCodeUnknown,
				"%s call outcome unknown", c.collaborator)
		}
		return apperrors.NewDependencyUnavailableError(c.collaborator, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return c.statusError(resp)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			if ambiguous {
				// A 2xx on a non-idempotent call means the collaborator
				// acted; an unreadable body must not become a retryable
				// failure, or the message would be posted twice.
				return apperrors.Wrapf(err, apperrors.ErrCodeUnknown,
					"%s accepted the call but returned an unreadable response", c.collaborator)
			}
			return apperrors.Wrapf(err, apperrors.ErrCodeDependencyUnavailable,
				"%s returned malformed response", c.collaborator)
		}
	}
	return nil
}

func (c *httpCaller) statusError(resp *http.Response) error {
	var envelope apiEnvelope
	_ = json.NewDecoder(resp.Body).Decode(&envelope)

	message := envelope.Error
	if message == "" {
		message = fmt.Sprintf("%s responded with status %d", c.collaborator, resp.StatusCode)
	}

	var code apperrors.ErrorCode
	switch {
	case resp.StatusCode == http.StatusBadRequest:
		code = apperrors.ErrCodeValidation
	case resp.StatusCode == http.StatusUnauthorized:
		code = apperrors.ErrCodeUnauthorized
	case resp.StatusCode == http.StatusForbidden:
		code = apperrors.ErrCodeForbidden
	case resp.StatusCode == http.StatusNotFound:
		code = apperrors.ErrCodeNotFound
	case resp.StatusCode == http.StatusConflict:
		code = apperrors.ErrCodeConflict
	default:
		// 429 and 5xx are transient from the caller's point of view.
		code = apperrors.ErrCodeDependencyUnavailable
	}

	appErr := apperrors.New(code, message).
		WithDetail("collaborator", c.collaborator).
		WithDetail("status", resp.StatusCode)
	if envelope.ErrorCode != "" {
		appErr = appErr.WithDetail("collaborator_error_code", envelope.ErrorCode)
	}
	return appErr
}

type authClient struct {
	*httpCaller
}

func (c *authClient) ValidateAccount(ctx context.Context, accountID int64) error {
	var out apiEnvelope
	path := fmt.Sprintf("/api/accounts/%d/validate", accountID)
	if err := c.call(ctx, "validate_account", http.MethodGet, path, nil, &out, false); err != nil {
		return err
	}
	if !out.Success {
		return apperrors.Newf(apperrors.ErrCodeUnauthorized,
			"account %d failed validation", accountID).
			WithDetail("account_id", accountID)
	}
	return nil
}

type channelClient struct {
	*httpCaller
}

func (c *channelClient) CheckChannelPermission(ctx context.Context, accountID, channelID int64) error {
	var out struct {
		apiEnvelope
		Permissions struct {
			CanPostMessages bool `json:"can_post_messages"`
		} `json:"permissions"`
	}
	path := fmt.Sprintf("/api/channels/%d/permissions?channel_id=%d", accountID, channelID)
	if err := c.call(ctx, "check_channel_permission", http.MethodGet, path, nil, &out, false); err != nil {
		return err
	}
	if !out.Success || !out.Permissions.CanPostMessages {
		return apperrors.Newf(apperrors.ErrCodeForbidden,
			"account %d cannot post to channel %d", accountID, channelID).
			WithDetail("account_id", accountID).
			WithDetail("channel_id", channelID)
	}
	return nil
}

type participantClient struct {
	*httpCaller
}

func (c *participantClient) SelectWinners(ctx context.Context, giveawayID int64, count int) (*WinnerSelection, error) {
	var out struct {
		apiEnvelope
		WinnerSelection
	}
	path := fmt.Sprintf("/api/participants/%d/select-winners", giveawayID)
	body := map[string]int{"winner_count": count}
	if err := c.call(ctx, "select_winners", http.MethodPost, path, body, &out, false); err != nil {
		return nil, err
	}
	return &out.WinnerSelection, nil
}

func (c *participantClient) ListParticipants(ctx context.Context, giveawayID int64, page, limit int) ([]int64, error) {
	var out struct {
		apiEnvelope
		Participants []int64 `json:"participants"`
	}
	path := fmt.Sprintf("/api/participants/%d?page=%d&limit=%d", giveawayID, page, limit)
	if err := c.call(ctx, "list_participants", http.MethodGet, path, nil, &out, false); err != nil {
		return nil, err
	}
	return out.Participants, nil
}

func (c *participantClient) ParticipationStats(ctx context.Context, giveawayID int64) (*ParticipationStats, error) {
	var out struct {
		apiEnvelope
		Stats ParticipationStats `json:"stats"`
	}
	path := fmt.Sprintf("/api/participants/%d/stats", giveawayID)
	if err := c.call(ctx, "participation_stats", http.MethodGet, path, nil, &out, false); err != nil {
		return nil, err
	}
	return &out.Stats, nil
}

type botClient struct {
	*httpCaller
}

func (c *botClient) PublishMessage(ctx context.Context, accountID, channelID int64, post *GiveawayPost) (int64, error) {
	var out struct {
		apiEnvelope
		MessageID int64 `json:"message_id"`
	}
	body := struct {
		AccountID int64         `json:"account_id"`
		ChannelID int64         `json:"channel_id"`
		Giveaway  *GiveawayPost `json:"giveaway"`
	}{accountID, channelID, post}
	if err := c.call(ctx, "publish_message", http.MethodPost, "/api/messages/giveaway", body, &out, true); err != nil {
		return 0, err
	}
	return out.MessageID, nil
}

func (c *botClient) PostConclusionMessage(ctx context.Context, accountID, channelID int64, message string, winners []int64) (int64, error) {
	var out struct {
		apiEnvelope
		MessageID int64 `json:"message_id"`
	}
	body := struct {
		AccountID int64   `json:"account_id"`
		ChannelID int64   `json:"channel_id"`
		Message   string  `json:"message"`
		Winners   []int64 `json:"winners"`
	}{accountID, channelID, message, winners}
	if err := c.call(ctx, "post_conclusion", http.MethodPost, "/api/messages/conclusion", body, &out, true); err != nil {
		return 0, err
	}
	return out.MessageID, nil
}

func (c *botClient) SendBulkMessages(ctx context.Context, req *BulkMessageRequest) (int, error) {
	var out struct {
		apiEnvelope
		Delivered int `json:"delivered"`
	}
	if err := c.call(ctx, "send_bulk_messages", http.MethodPost, "/api/messages/bulk", req, &out, true); err != nil {
		return 0, err
	}
	return out.Delivered, nil
}

func (c *botClient) GetGiveawayMessage(ctx context.Context, giveawayID int64) (*MessageInfo, error) {
	var out struct {
		apiEnvelope
		Message MessageInfo `json:"message"`
	}
	path := fmt.Sprintf("/api/messages/giveaway/%d", giveawayID)
	if err := c.call(ctx, "get_giveaway_message", http.MethodGet, path, nil, &out, false); err != nil {
		return nil, err
	}
	return &out.Message, nil
}

type mediaClient struct {
	*httpCaller
}

func (c *mediaClient) ValidateMedia(ctx context.Context, mediaFileID int64) error {
	var out apiEnvelope
	path := fmt.Sprintf("/api/media/%d/validate", mediaFileID)
	if err := c.call(ctx, "validate_media", http.MethodGet, path, nil, &out, false); err != nil {
		return err
	}
	if !out.Success {
		return apperrors.Newf(apperrors.ErrCodeValidation,
			"media file %d failed validation", mediaFileID).
			WithDetail("media_file_id", mediaFileID)
	}
	return nil
}

func (c *mediaClient) GetMediaURL(ctx context.Context, mediaFileID int64) (string, error) {
	var out struct {
		apiEnvelope
		URL string `json:"url"`
	}
	path := fmt.Sprintf("/api/media/%d/url", mediaFileID)
	if err := c.call(ctx, "get_media_url", http.MethodGet, path, nil, &out, false); err != nil {
		return "", err
	}
	return out.URL, nil
}

func (c *mediaClient) ScheduleCleanup(ctx context.Context, mediaFileID int64) error {
	path := fmt.Sprintf("/api/media/%d/cleanup", mediaFileID)
	return c.call(ctx, "schedule_cleanup", http.MethodPost, path, nil, nil, false)
}

func (c *mediaClient) ReleaseMedia(ctx context.Context, giveawayID int64) error {
	path := fmt.Sprintf("/api/media/giveaway/%d/release", giveawayID)
	return c.call(ctx, "release_media", http.MethodPost, path, nil, nil, false)
}
