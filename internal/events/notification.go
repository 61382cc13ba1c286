package events

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/rodneygagnon/qckstrt/internal/models"
)

var ErrMalformedNotification = errors.New("malformed notification")

type s3Notification struct {
	Records []s3Record `json:"Records"`
}

type s3Record struct {
	EventName string `json:"eventName"`
	S3        struct {
		Bucket struct {
			Name string `json:"name"`
		} `json:"bucket"`
		Object struct {
			Key       string `json:"key"`
			Sequencer string `json:"sequencer"`
		} `json:"object"`
	} `json:"s3"`
}

// ParseNotification accepts a single pipeline event, an array of them, or an
// S3-style {"Records": [...]} notification.
func ParseNotification(body []byte) ([]models.PipelineEvent, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return nil, ErrMalformedNotification
	}

	if body[0] == '[' {
		var evs []models.PipelineEvent
		if err := json.Unmarshal(body, &evs); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedNotification, err)
		}
		return evs, nil
	}

	var probe map[string]json.RawMessage
	if err := json.Unmarshal(body, &probe); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedNotification, err)
	}

	if _, ok := probe["Records"]; ok {
		var n s3Notification
		if err := json.Unmarshal(body, &n); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedNotification, err)
		}
		return fromS3(n)
	}

	var ev models.PipelineEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedNotification, err)
	}
	return []models.PipelineEvent{ev}, nil
}

func fromS3(n s3Notification) ([]models.PipelineEvent, error) {
	evs := make([]models.PipelineEvent, 0, len(n.Records))
	for _, r := range n.Records {
		// S3 form-encodes object keys.
		key, err := url.QueryUnescape(r.S3.Object.Key)
		if err != nil {
			return nil, fmt.Errorf("%w: object key %q: %v", ErrMalformedNotification, r.S3.Object.Key, err)
		}
		prefix, _, _ := strings.Cut(r.EventName, ":")
		locator := fmt.Sprintf("s3://%s/%s", r.S3.Bucket.Name, key)

		evs = append(evs, models.PipelineEvent{
			Source:        models.EventSourceNotification,
			NamePrefix:    prefix,
			ObjectLocator: locator,
			EventID:       fmt.Sprintf("%s#%s#%s", locator, prefix, r.S3.Object.Sequencer),
			Status:        models.EventStatusSucceeded,
		})
	}
	return evs, nil
}

// locatorCandidates lists the equivalent spellings of a storage locator, most
// specific first, so "s3://b/k", "gs://b/k" and "b/k" resolve to the same record.
func locatorCandidates(locator string) []string {
	out := []string{locator}
	for _, scheme := range []string{"s3://", "gs://"} {
		if rest, ok := strings.CutPrefix(locator, scheme); ok {
			return append(out, rest)
		}
	}
	if strings.Contains(locator, "://") || strings.HasPrefix(locator, "/") || strings.HasPrefix(locator, ".") {
		return out
	}
	return append(out, "s3://"+locator, "gs://"+locator)
}
