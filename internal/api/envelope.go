package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// Envelope is the outer shape of every upstream API response.
type Envelope struct {
	Result json.RawMessage `json:"result"`
	ErrMsg string          `json:"errmsg"`
}

// FlexString tolerates fields the API serves as either a JSON string or a
// number (flag_complete and several counters flip between runs).
type FlexString string

// UnmarshalJSON implements json.Unmarshaler.
func (f *FlexString) UnmarshalJSON(raw []byte) error {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		*f = ""
		return nil
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return err
		}
		*f = FlexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return fmt.Errorf("value is neither string nor number: %s", raw)
	}
	*f = FlexString(n.String())
	return nil
}

// Int returns the numeric value, 0 when absent or non-numeric.
func (f FlexString) Int() int {
	n, err := strconv.Atoi(string(f))
	if err != nil {
		return 0
	}
	return n
}

type loginResult struct {
	LoginAt string `json:"LOGINAT"`
}

// NovelInfo is the work record under result.novel.
type NovelInfo struct {
	NovelNo      FlexString `json:"novel_no"`
	NovelName    string     `json:"novel_name"`
	NovelStory   string     `json:"novel_story"`
	FlagComplete FlexString `json:"flag_complete"`
	NovelImg     string     `json:"novel_img"`
	NovelFullImg string     `json:"novel_full_img"`
	CountEpi     FlexString `json:"count_epi"`
}

// Writer is one entry of result.writer_list.
type Writer struct {
	WriterName string `json:"writer_name"`
}

// NovelPayload is the decoded result of the novel endpoint.
type NovelPayload struct {
	Novel      NovelInfo `json:"novel"`
	WriterList []Writer  `json:"writer_list"`
	Info       struct {
		EpiCnt FlexString `json:"epi_cnt"`
	} `json:"info"`
}

// EpisodeCount prefers the info block's counter over the novel record's.
func (p *NovelPayload) EpisodeCount() int {
	if n := p.Info.EpiCnt.Int(); n > 0 {
		return n
	}
	return p.Novel.CountEpi.Int()
}

// Status maps the completion flag to a display status.
func (p *NovelPayload) Status() string {
	if string(p.Novel.FlagComplete) == "1" {
		return "Completed"
	}
	return "Ongoing"
}

// EpisodeRow is one listing entry of the episode-list endpoint.
type EpisodeRow struct {
	EpisodeNo FlexString `json:"episode_no"`
	EpiNum    FlexString `json:"epi_num"`
	EpiTitle  string     `json:"epi_title"`
}

// Title returns the row title or a numbered placeholder.
func (r EpisodeRow) Title() string {
	if strings.TrimSpace(r.EpiTitle) != "" {
		return r.EpiTitle
	}
	return "Episode " + string(r.EpiNum)
}

// episodeListPayload is the decoded result of the episode-list endpoint.
type episodeListPayload struct {
	List []EpisodeRow `json:"list"`
}

var contentKeySuffix = regexp.MustCompile(`(\d+)$`)

// AssembleEpisodeHTML concatenates the epi_content fields of a content
// payload in their natural order (epi_content, epi_content2, epi_content3,
// ...), falling back to the generic body fields when none are present.
func AssembleEpisodeHTML(payload map[string]interface{}) string {
	result, _ := payload["result"].(map[string]interface{})
	data, _ := result["data"].(map[string]interface{})

	var keys []string
	for k := range data {
		if strings.HasPrefix(k, "epi_content") {
			keys = append(keys, k)
		}
	}
	sort.Slice(keys, func(i, j int) bool {
		return contentKeyOrder(keys[i]) < contentKeyOrder(keys[j])
	})

	var parts []string
	for _, k := range keys {
		if v, ok := data[k].(string); ok && v != "" {
			parts = append(parts, v)
		}
	}
	if html := strings.TrimSpace(strings.Join(parts, "")); html != "" {
		return html
	}

	for _, k := range []string{"content", "html", "text"} {
		if v, ok := result[k].(string); ok && v != "" {
			return v
		}
	}
	if v, ok := payload["content"].(string); ok {
		return v
	}
	return ""
}

// contentKeyOrder sorts the bare epi_content key first, then by numeric
// suffix.
func contentKeyOrder(k string) int {
	if k == "epi_content" {
		return 0
	}
	m := contentKeySuffix.FindStringSubmatch(k)
	if m == nil {
		return 1
	}
	n, _ := strconv.Atoi(m[1])
	return n + 1
}
