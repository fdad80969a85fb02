package a2a

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/atlas-cortex/cortex/internal/persona"
)

// Profile is a household member's voice assistant profile: identity,
// expertise, and communication style, composed into a system prompt by the
// Generation Orchestrator and the simple-conversation fast path alike.
type Profile struct {
	ID        string
	Name      string
	Role      string
	IsBuiltIn bool

	core *persona.PersonaCore
}

// SystemPrompt composes the profile's persona into a system prompt.
func (p *Profile) SystemPrompt() string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("You are %s, %s.\n\n", p.core.Identity.Name, p.core.Identity.Role))
	if len(p.core.Identity.Personality) > 0 {
		sb.WriteString("Personality: " + strings.Join(p.core.Identity.Personality, ", ") + "\n\n")
	}
	switch p.core.Communication.Tone {
	case persona.ToneCasual:
		sb.WriteString("Speak casually and warmly.\n")
	case persona.ToneTechnical:
		sb.WriteString("Speak precisely; technical detail is welcome.\n")
	case persona.ToneFriendly:
		sb.WriteString("Speak in a friendly, approachable way.\n")
	default:
		sb.WriteString("Speak professionally but warmly.\n")
	}
	return sb.String()
}

// ProfileRegistry holds the household's voice assistant profiles, loaded from
// a directory of YAML persona files at startup.
type ProfileRegistry struct {
	mu       sync.RWMutex
	profiles map[string]*Profile
}

// NewProfileRegistry creates an empty registry seeded with a built-in
// default profile.
func NewProfileRegistry() *ProfileRegistry {
	r := &ProfileRegistry{profiles: make(map[string]*Profile)}
	defaultCore := persona.NewPersonaCore()
	r.profiles["default"] = &Profile{
		ID:        "default",
		Name:      defaultCore.Identity.Name,
		Role:      defaultCore.Identity.Role,
		IsBuiltIn: true,
		core:      defaultCore,
	}
	return r
}

// LoadDir loads every *.yaml file in dir as a profile, keyed by filename
// stem. Missing directories are not an error; the registry simply keeps
// whatever it had.
func (r *ProfileRegistry) LoadDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read profile dir: %w", err)
	}

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".yaml") {
			continue
		}
		id := strings.TrimSuffix(entry.Name(), ".yaml")
		core, err := persona.LoadFromFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return fmt.Errorf("load profile %s: %w", id, err)
		}
		r.mu.Lock()
		r.profiles[id] = &Profile{ID: id, Name: core.Identity.Name, Role: core.Identity.Role, core: core}
		r.mu.Unlock()
	}
	return nil
}

// Get returns the profile with the given ID.
func (r *ProfileRegistry) Get(id string) (*Profile, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.profiles[id]
	if !ok {
		p, ok = r.profiles["default"]
	}
	return p, ok
}

// List returns all known profiles, sorted by ID.
func (r *ProfileRegistry) List() []*Profile {
	r.mu.RLock()
	defer r.mu.RUnlock()
	list := make([]*Profile, 0, len(r.profiles))
	for _, p := range r.profiles {
		list = append(list, p)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })
	return list
}
