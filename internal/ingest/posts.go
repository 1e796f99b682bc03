// Package ingest converts exported channel posts into catalog products.
package ingest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/megachat/sales-assistant/internal/core/domain"
)

const (
	currency      = "تومان"
	millionMarker = "میلیون"
	maxNameRunes  = 100
)

var priceRe = regexp.MustCompile(`(\d[\d,]*)\s*(?:تومان|میلیون)`)

// Post is one exported channel message.
type Post struct {
	ID    string
	Text  string
	Date  any
	Views any
}

type rawPost struct {
	ID    json.RawMessage `json:"id"`
	Text  json.RawMessage `json:"text"`
	Date  any             `json:"date"`
	Views any             `json:"views"`
}

func (p *Post) UnmarshalJSON(data []byte) error {
	var raw rawPost
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	p.ID = scalarString(raw.ID)
	p.Text = flattenText(raw.Text)
	p.Date = raw.Date
	p.Views = raw.Views
	return nil
}

// scalarString renders a JSON string or number without quotes.
func scalarString(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}

// flattenText accepts plain text or a list mixing strings and
// {"type": ..., "text": ...} entities.
func flattenText(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var parts []json.RawMessage
	if err := json.Unmarshal(raw, &parts); err != nil {
		return ""
	}
	var b strings.Builder
	for _, part := range parts {
		var text string
		if err := json.Unmarshal(part, &text); err == nil {
			b.WriteString(text)
			continue
		}
		var entity struct {
			Text string `json:"text"`
		}
		if err := json.Unmarshal(part, &entity); err == nil {
			b.WriteString(entity.Text)
		}
	}
	return b.String()
}

// ReadChannel loads one export file. The channel name is the file stem and
// the file holds either a bare post array or an object with "messages".
func ReadChannel(path string) (string, []Post, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", nil, fmt.Errorf("read %s: %w", path, err)
	}
	channel := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))

	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var posts []Post
		if err := json.Unmarshal(trimmed, &posts); err != nil {
			return "", nil, fmt.Errorf("decode %s: %w", path, err)
		}
		return channel, posts, nil
	}

	var export struct {
		Messages []Post `json:"messages"`
	}
	if err := json.Unmarshal(trimmed, &export); err != nil {
		return "", nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return channel, export.Messages, nil
}

// PostToProduct maps a post to a product. Posts without an id get a random one.
func PostToProduct(post Post, channel string, now time.Time) domain.Product {
	postID := post.ID
	if postID == "" {
		postID = uuid.NewString()
	}

	name := truncateRunes(post.Text, maxNameRunes)
	if strings.TrimSpace(name) == "" {
		name = "محصول " + postID
	}

	return domain.Product{
		ID:           channel + "_" + postID,
		Name:         name,
		Description:  post.Text,
		Price:        ExtractPrice(post.Text),
		Currency:     currency,
		Availability: true,
		Metadata: map[string]any{
			"channel": channel,
			"post_id": postID,
			"date":    post.Date,
			"views":   post.Views,
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// ExtractPrice returns the first amount followed by a currency word, scaled
// by a million when the text mentions میلیون anywhere. Zero means unknown.
func ExtractPrice(text string) float64 {
	match := priceRe.FindStringSubmatch(text)
	if match == nil {
		return 0
	}
	amount, err := strconv.ParseInt(strings.ReplaceAll(match[1], ",", ""), 10, 64)
	if err != nil {
		return 0
	}
	if strings.Contains(text, millionMarker) {
		amount *= 1_000_000
	}
	return float64(amount)
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n])
}
