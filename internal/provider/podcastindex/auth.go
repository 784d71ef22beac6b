package podcastindex

import (
	"crypto/sha1"
	"encoding/hex"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/skywave/skywave/internal/provider"
)

// signRequest adds the Podcast Index authentication headers. The
// Authorization value is hex(sha1(key + secret + unix-seconds)) and must
// match the X-Auth-Date it ships with; the API also rejects requests
// without a User-Agent.
func signRequest(req *http.Request, apiKey, apiSecret string, now time.Time) {
	authDate := strconv.FormatInt(now.Unix(), 10)

	h := sha1.New()
	io.WriteString(h, apiKey+apiSecret+authDate)

	req.Header.Set("X-Auth-Date", authDate)
	req.Header.Set("X-Auth-Key", apiKey)
	req.Header.Set("Authorization", hex.EncodeToString(h.Sum(nil)))
	req.Header.Set("User-Agent", provider.UserAgent)
}
