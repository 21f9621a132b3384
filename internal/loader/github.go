package loader

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"promptsync/internal/models"
)

const (
	defaultAPIBase  = "https://api.github.com"
	defaultCacheTTL = 5 * time.Minute
	maxResponseSize = 4 * 1024 * 1024 // directory listings can be large
)

var (
	errNotFound    = errors.New("not found")
	errRateLimited = errors.New("rate limited")
)

// repoEntry is one item of a GitHub contents directory listing
type repoEntry struct {
	Name string `json:"name"`
	Path string `json:"path"`
	Type string `json:"type"` // "file" | "dir"
}

// GitHubSource loads content from a GitHub repository through the contents
// API. Directory listings and raw files are cached with a fixed TTL; a hit
// within TTL never touches the network. Requests are paced by a local rate
// limiter to stay inside GitHub's quota.
type GitHubSource struct {
	owner   string
	repo    string
	branch  string
	token   string
	apiBase string

	client   *http.Client
	cache    *cache.Cache
	limiter  *rate.Limiter
	unparsed unparsedLog
}

// NewGitHubSource creates a loader for "owner/name" at the given branch.
// token may be empty (unauthenticated, lower API quota). cacheTTL <= 0
// falls back to the 5 minute default.
func NewGitHubSource(repo, branch, token string, cacheTTL time.Duration) (*GitHubSource, error) {
	parts := strings.Split(strings.TrimSpace(repo), "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return nil, fmt.Errorf("invalid repository %q, expected owner/name", repo)
	}
	if branch == "" {
		branch = "main"
	}
	if cacheTTL <= 0 {
		cacheTTL = defaultCacheTTL
	}

	transport := &http.Transport{
		MaxIdleConns:        20,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
		DialContext: (&net.Dialer{
			Timeout:   15 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
	}

	return &GitHubSource{
		owner:   parts[0],
		repo:    parts[1],
		branch:  branch,
		token:   token,
		apiBase: defaultAPIBase,
		client: &http.Client{
			Transport: transport,
			Timeout:   30 * time.Second,
		},
		cache:    cache.New(cacheTTL, 2*cacheTTL),
		limiter:  rate.NewLimiter(rate.Limit(5), 10),
		unparsed: unparsedLog{source: "github"},
	}, nil
}

// LoadCommands lists the commands tree (recursing into subdirectories,
// excluding the shared fragment tree) and fetches each markdown file. Any
// failure to reach the repository degrades to an empty result.
func (s *GitHubSource) LoadCommands(ctx context.Context) ([]models.Command, error) {
	commands := []models.Command{}
	s.walkCommands(ctx, "commands", &commands)
	log.Printf("🌐 [GITHUB] Loaded %d commands from %s/%s@%s", len(commands), s.owner, s.repo, s.branch)
	return commands, nil
}

func (s *GitHubSource) walkCommands(ctx context.Context, dir string, out *[]models.Command) {
	entries, err := s.listDir(ctx, dir)
	if err != nil {
		if !errors.Is(err, errNotFound) {
			log.Printf("⚠️  [GITHUB] Failed to list %s: %v", dir, err)
		}
		return
	}

	for _, entry := range entries {
		switch entry.Type {
		case "dir":
			if entry.Name == "shared" {
				continue // include fragments, not commands
			}
			s.walkCommands(ctx, entry.Path, out)
		case "file":
			if !strings.HasSuffix(entry.Name, ".md") {
				continue
			}
			content, err := s.fetchRaw(ctx, entry.Path)
			if err != nil {
				log.Printf("⚠️  [GITHUB] Failed to fetch %s: %v", entry.Path, err)
				continue
			}

			stem := strings.TrimSuffix(entry.Name, ".md")
			cmd, err := ParseCommandMD(content, stem)
			if err != nil {
				log.Printf("⚠️  [GITHUB] Failed to parse command %s: %v", entry.Path, err)
				s.unparsed.record(entry.Path, err)
				continue
			}

			cmd.Prompt = expandIncludes(cmd.Prompt, func(ref string) (string, bool) {
				return s.resolveInclude(ctx, ref)
			})
			*out = append(*out, cmd)
		}
	}
}

// LoadPersonas probes the persona singleton candidates against the
// repository. A missing file or unreachable API yields no personas.
func (s *GitHubSource) LoadPersonas(ctx context.Context) ([]models.Persona, error) {
	path, content, ok := s.probe(ctx, personaCandidates)
	if !ok {
		return []models.Persona{}, nil
	}

	personas, err := ParsePersonasYAML(content)
	if err != nil {
		log.Printf("⚠️  [GITHUB] Failed to parse personas %s: %v", path, err)
		s.unparsed.record(path, err)
		return []models.Persona{}, nil
	}

	log.Printf("🌐 [GITHUB] Loaded %d personas from %s", len(personas), path)
	return personas, nil
}

// LoadRules probes the rules singleton candidates. A 404 means the source
// defines no rules, never an error.
func (s *GitHubSource) LoadRules(ctx context.Context) (models.RuleSet, error) {
	path, content, ok := s.probe(ctx, ruleCandidates)
	if !ok {
		return models.RuleSet{Rules: []models.Rule{}}, nil
	}

	set, err := ParseRulesMD(content)
	if err != nil {
		log.Printf("⚠️  [GITHUB] Failed to parse rules %s: %v", path, err)
		s.unparsed.record(path, err)
		return models.RuleSet{Rules: []models.Rule{}}, nil
	}

	log.Printf("🌐 [GITHUB] Loaded %d rules from %s", len(set.Rules), path)
	return set, nil
}

// LoadSharedIncludes resolves fragment references and concatenates their
// bodies in input order. Unresolved references are skipped with a warning.
func (s *GitHubSource) LoadSharedIncludes(ctx context.Context, refs []string) (string, error) {
	var sb strings.Builder
	for _, ref := range refs {
		fragment, ok := s.resolveInclude(ctx, ref)
		if !ok {
			continue
		}
		if sb.Len() > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString(fragment)
	}
	return sb.String(), nil
}

// ClearCache flushes the TTL response cache
func (s *GitHubSource) ClearCache() {
	s.cache.Flush()
	log.Printf("🧹 [GITHUB] Response cache cleared")
}

// UnparsedFiles drains the parse-failure diagnostics of the current pass
func (s *GitHubSource) UnparsedFiles() []models.UnparsedFile {
	return s.unparsed.drain()
}

func (s *GitHubSource) resolveInclude(ctx context.Context, ref string) (string, bool) {
	if strings.Contains(ref, "..") {
		log.Printf("⚠️  [GITHUB] Ignoring include reference with path escape: %q", ref)
		return "", false
	}
	for _, dir := range includeDirs {
		content, err := s.fetchRaw(ctx, path.Join(dir, ref))
		if err == nil {
			return strings.TrimSpace(content), true
		}
	}
	log.Printf("⚠️  [GITHUB] Unresolved include reference %q", ref)
	return "", false
}

// probe fetches the first candidate path that exists. Rate-limit and
// transport failures degrade to "nothing found" for this call.
func (s *GitHubSource) probe(ctx context.Context, candidates []string) (string, string, bool) {
	for _, p := range candidates {
		content, err := s.fetchRaw(ctx, p)
		if err == nil {
			return p, content, true
		}
		if !errors.Is(err, errNotFound) {
			log.Printf("⚠️  [GITHUB] Failed to fetch %s: %v", p, err)
			return "", "", false
		}
	}
	return "", "", false
}

// listDir fetches a directory listing through the contents API, serving
// from the TTL cache when possible
func (s *GitHubSource) listDir(ctx context.Context, dir string) ([]repoEntry, error) {
	key := "list:" + dir
	if cached, found := s.cache.Get(key); found {
		return cached.([]repoEntry), nil
	}

	body, err := s.request(ctx, s.contentsURL(dir), "application/vnd.github+json")
	if err != nil {
		return nil, err
	}

	var entries []repoEntry
	if err := json.Unmarshal(body, &entries); err != nil {
		return nil, fmt.Errorf("invalid listing response for %s: %w", dir, err)
	}

	s.cache.Set(key, entries, cache.DefaultExpiration)
	return entries, nil
}

// fetchRaw fetches a file's raw content by repository path, serving from
// the TTL cache when possible
func (s *GitHubSource) fetchRaw(ctx context.Context, p string) (string, error) {
	key := "file:" + p
	if cached, found := s.cache.Get(key); found {
		return cached.(string), nil
	}

	body, err := s.request(ctx, s.contentsURL(p), "application/vnd.github.raw")
	if err != nil {
		return "", err
	}

	content := string(body)
	s.cache.Set(key, content, cache.DefaultExpiration)
	return content, nil
}

func (s *GitHubSource) contentsURL(p string) string {
	return fmt.Sprintf("%s/repos/%s/%s/contents/%s?ref=%s",
		s.apiBase, s.owner, s.repo, p, url.QueryEscape(s.branch))
}

// request performs one paced API call. 404 maps to errNotFound, 403/429 to
// errRateLimited; callers decide how those degrade.
func (s *GitHubSource) request(ctx context.Context, u, accept string) ([]byte, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", accept)
	req.Header.Set("User-Agent", "promptsync/1.0")
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return nil, errNotFound
	case http.StatusForbidden, http.StatusTooManyRequests:
		log.Printf("⚠️  [GITHUB] Rate limited by API (%d) for %s", resp.StatusCode, u)
		return nil, errRateLimited
	default:
		return nil, fmt.Errorf("github API returned %d", resp.StatusCode)
	}

	return io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
}
