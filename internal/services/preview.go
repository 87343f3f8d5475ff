package services

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/taskmate/backend/internal/models"
	"github.com/taskmate/backend/internal/store"
)

// Preview is the latest message of a project, as shown in an inbox.
type Preview struct {
	ProjectID uint      `json:"project_id"`
	MessageID uint64    `json:"message_id,string"`
	UserID    uint      `json:"user_id"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

func (p *Preview) newerThan(other *Preview) bool {
	if other == nil {
		return true
	}
	if !p.CreatedAt.Equal(other.CreatedAt) {
		return p.CreatedAt.After(other.CreatedAt)
	}
	return p.MessageID > other.MessageID
}

func previewFromMessage(m *models.Message) *Preview {
	return &Preview{
		ProjectID: m.ProjectID,
		MessageID: m.ID,
		UserID:    m.UserID,
		Content:   m.Content,
		CreatedAt: m.CreatedAt,
	}
}

type InboxEntry struct {
	Project models.Project `json:"project"`
	Role    string         `json:"role"` // owner, member
	Preview *Preview       `json:"preview"`
}

// PreviewProjector is a read model of the newest message per project. It is
// fed by append notifications and can always be rebuilt from the log.
type PreviewProjector struct {
	gw    store.Gateway
	cache *cache.Cache
	mu    sync.Mutex
}

func NewPreviewProjector(gw store.Gateway, ttl time.Duration) *PreviewProjector {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &PreviewProjector{
		gw:    gw,
		cache: cache.New(ttl, 2*ttl),
	}
}

func previewKey(projectID uint) string {
	return fmt.Sprintf("project:%d", projectID)
}

func (p *PreviewProjector) cached(projectID uint) *Preview {
	if v, ok := p.cache.Get(previewKey(projectID)); ok {
		return v.(*Preview)
	}
	return nil
}

// Apply stores preview unless a newer one is already held. It reports
// whether the stored preview changed.
func (p *PreviewProjector) Apply(preview *Preview) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !preview.newerThan(p.cached(preview.ProjectID)) {
		return false
	}
	p.cache.SetDefault(previewKey(preview.ProjectID), preview)
	return true
}

// HandleMessageAppended is the task processor for append notifications.
func (p *PreviewProjector) HandleMessageAppended(_ context.Context, task *MessageAppendedTask) error {
	p.Apply(&Preview{
		ProjectID: task.ProjectID,
		MessageID: task.MessageID,
		UserID:    task.UserID,
		Content:   task.Content,
		CreatedAt: task.CreatedAt,
	})
	return nil
}

// HandleEvent keeps this instance's previews current from hub traffic, which
// includes appends made on other instances. Without a message body the cached
// preview is dropped so the next read goes to the log.
func (p *PreviewProjector) HandleEvent(event ChatEvent) {
	if event.Type != EventAppended {
		return
	}
	if event.Message == nil {
		p.Forget(event.ProjectID)
		return
	}
	p.Apply(&Preview{
		ProjectID: event.ProjectID,
		MessageID: event.MessageID,
		UserID:    event.Message.User.ID,
		Content:   event.Message.Content,
		CreatedAt: event.Message.CreatedAt,
	})
}

// Get returns the preview of one project, or nil if it has no messages.
func (p *PreviewProjector) Get(ctx context.Context, projectID uint) (*Preview, error) {
	previews, err := p.lookup(ctx, []uint{projectID})
	if err != nil {
		return nil, err
	}
	return previews[projectID], nil
}

func (p *PreviewProjector) lookup(ctx context.Context, projectIDs []uint) (map[uint]*Preview, error) {
	out := make(map[uint]*Preview, len(projectIDs))
	var missing []uint
	for _, id := range projectIDs {
		if pv := p.cached(id); pv != nil {
			out[id] = pv
		} else {
			missing = append(missing, id)
		}
	}
	if len(missing) == 0 {
		return out, nil
	}

	latest, err := p.gw.LatestMessages(ctx, missing)
	if err != nil {
		return nil, fmt.Errorf("load latest messages: %w", err)
	}
	for id, msg := range latest {
		pv := previewFromMessage(&msg)
		p.Apply(pv)
		if cur := p.cached(id); cur != nil {
			out[id] = cur
		} else {
			out[id] = pv
		}
	}
	return out, nil
}

// Inbox lists every project the user owns or belongs to. Projects with
// messages come first, most recent first; the rest follow newest project
// first.
func (p *PreviewProjector) Inbox(ctx context.Context, userID uint) ([]InboxEntry, error) {
	projects, err := p.gw.ProjectsForUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load projects: %w", err)
	}
	ids := make([]uint, len(projects))
	for i := range projects {
		ids[i] = projects[i].ID
	}
	previews, err := p.lookup(ctx, ids)
	if err != nil {
		return nil, err
	}

	entries := make([]InboxEntry, len(projects))
	for i := range projects {
		role := "member"
		if projects[i].OwnerID == userID {
			role = "owner"
		}
		entries[i] = InboxEntry{Project: projects[i], Role: role, Preview: previews[projects[i].ID]}
	}

	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		switch {
		case a.Preview != nil && b.Preview != nil:
			return a.Preview.newerThan(b.Preview)
		case a.Preview != nil:
			return true
		case b.Preview != nil:
			return false
		}
		if !a.Project.CreatedAt.Equal(b.Project.CreatedAt) {
			return a.Project.CreatedAt.After(b.Project.CreatedAt)
		}
		return a.Project.ID > b.Project.ID
	})
	return entries, nil
}

// Rebuild recomputes previews from the durable log and returns how many
// projects have one. Cached previews newer than the log snapshot are kept.
func (p *PreviewProjector) Rebuild(ctx context.Context) (int, error) {
	latest, err := p.gw.LatestMessages(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("load latest messages: %w", err)
	}

	p.mu.Lock()
	for key, item := range p.cache.Items() {
		pv := item.Object.(*Preview)
		if _, ok := latest[pv.ProjectID]; !ok {
			p.cache.Delete(key)
		}
	}
	p.mu.Unlock()

	for _, msg := range latest {
		p.Apply(previewFromMessage(&msg))
	}
	return len(latest), nil
}

// Forget drops a project's preview, e.g. after the project is deleted.
func (p *PreviewProjector) Forget(projectID uint) {
	p.mu.Lock()
	p.cache.Delete(previewKey(projectID))
	p.mu.Unlock()
}

func (p *PreviewProjector) Len() int {
	return p.cache.ItemCount()
}
