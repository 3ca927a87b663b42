package github

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/xxxsen/common/logutil"
	"github.com/xxxsen/mrag/internal/model"
	"go.uber.org/zap"
)

const (
	repoCounterSelector = `a[href*="tab=repositories"] .Counter`
	totalSelector       = "h2.f4"
	daySelector         = "td.ContributionCalendar-day"
)

var numberRe = regexp.MustCompile(`\d+`)

func (a *Analyzer) fetchDocument(ctx context.Context, url string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "text/html")
	resp, err := a.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("fetch %s: %s", url, resp.Status)
	}
	return goquery.NewDocumentFromReader(resp.Body)
}

// parseRepoCount reads the repositories tab counter, which GitHub renders
// either as a plain number or abbreviated such as "1.2k".
func parseRepoCount(doc *goquery.Document) (int, error) {
	sel := doc.Find(repoCounterSelector).First()
	if sel.Length() == 0 {
		return 0, fmt.Errorf("repository counter not found")
	}
	text := strings.TrimSpace(sel.Text())
	if title, ok := sel.Attr("title"); ok && strings.TrimSpace(title) != "" {
		text = strings.TrimSpace(title)
	}
	return parseCount(text)
}

func parseCount(text string) (int, error) {
	text = strings.ToLower(strings.ReplaceAll(strings.TrimSpace(text), ",", ""))
	multiplier := 1.0
	if strings.HasSuffix(text, "k") {
		multiplier = 1000
		text = strings.TrimSuffix(text, "k")
	}
	v, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return 0, fmt.Errorf("parse count %q: %w", text, err)
	}
	return int(v * multiplier), nil
}

// parseTotal returns the first integer of the calendar heading after
// removing thousands separators.
func parseTotal(doc *goquery.Document) (int, error) {
	sel := doc.Find(totalSelector).First()
	if sel.Length() == 0 {
		return 0, fmt.Errorf("contribution total not found")
	}
	text := strings.ReplaceAll(sel.Text(), ",", "")
	m := numberRe.FindString(text)
	if m == "" {
		return 0, fmt.Errorf("no number in %q", strings.TrimSpace(sel.Text()))
	}
	return strconv.Atoi(m)
}

// parseDays reads every calendar cell. The count comes from data-count and
// falls back to the tool-tip linked by the cell id, then to data-level.
func parseDays(ctx context.Context, doc *goquery.Document) []model.ContributionDay {
	tips := make(map[string]string)
	doc.Find("tool-tip[for]").Each(func(_ int, s *goquery.Selection) {
		id, _ := s.Attr("for")
		tips[id] = strings.TrimSpace(s.Text())
	})
	var days []model.ContributionDay
	doc.Find(daySelector).Each(func(_ int, s *goquery.Selection) {
		date, ok := s.Attr("data-date")
		if !ok || date == "" {
			return
		}
		count, err := dayCount(s, tips)
		if err != nil {
			logutil.GetLogger(ctx).Debug("skip calendar day", zap.String("date", date), zap.Error(err))
			return
		}
		days = append(days, model.ContributionDay{Date: date, Count: count})
	})
	SortDays(days)
	return days
}

func dayCount(s *goquery.Selection, tips map[string]string) (int, error) {
	if raw, ok := s.Attr("data-count"); ok {
		return strconv.Atoi(strings.TrimSpace(raw))
	}
	if id, ok := s.Attr("id"); ok {
		if tip, ok := tips[id]; ok {
			if strings.HasPrefix(strings.ToLower(tip), "no contributions") {
				return 0, nil
			}
			if m := numberRe.FindString(strings.ReplaceAll(tip, ",", "")); m != "" {
				return strconv.Atoi(m)
			}
		}
	}
	// data-level is an intensity bucket, not a count: only "active or not" survives.
	if raw, ok := s.Attr("data-level"); ok {
		level, err := strconv.Atoi(strings.TrimSpace(raw))
		if err != nil {
			return 0, err
		}
		if level > 0 {
			return 1, nil
		}
		return 0, nil
	}
	return 0, fmt.Errorf("no count attribute")
}
