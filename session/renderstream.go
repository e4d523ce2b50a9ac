package session

import (
	"context"
	"fmt"
	"sort"

	"github.com/hangyeol-kang/d3RW/d3"
	"github.com/hangyeol-kang/d3RW/poll"
	"github.com/pkg/errors"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// sortLayers orders layers by name the way a user reads them, not by byte value.
func sortLayers(layers []d3.Layer) {
	coll := collate.New(language.Und)
	sort.SliceStable(layers, func(i, j int) bool {
		return coll.CompareString(layers[i].Name, layers[j].Name) < 0
	})
}

func refName(r *d3.Ref) string {
	if r == nil || r.Name == "" {
		return Undefined
	}
	return r.Name
}

func layerRow(l d3.Layer, cfg d3.LayerConfig) LayerRow {
	row := LayerRow{
		UID:   l.UID,
		Name:  l.Name,
		Asset: refName(cfg.Asset),
		Pool:  refName(cfg.Pool),
	}
	for _, m := range cfg.ChannelMappings {
		row.Mappings = append(row.Mappings,
			fmt.Sprintf("%s : %s Assigner: %s", m.Channel, m.Mapping.Name, m.Assigner.Name))
	}
	if len(row.Mappings) == 0 {
		row.Mappings = []string{Undefined}
	}
	return row
}

func statusCard(l LayerRow, st d3.LayerStatus) (StatusCard, bool) {
	instances := st.Workload.Instances
	if len(instances) == 0 {
		return StatusCard{}, false
	}
	card := StatusCard{UID: l.UID, Name: l.Name, Lines: make([]string, 0, len(instances))}
	for _, in := range instances {
		card.Lines = append(card.Lines, fmt.Sprintf("%s, %s, %s", in.MachineName, in.State, in.HealthMessage))
	}
	return card, true
}

// RefreshLayers rebuilds the layer table, sorted by name, with the config of
// each layer. Layers whose config can not be read are left out. Status cards
// are cleared with the selection.
func (s *Session) RefreshLayers(ctx context.Context) (err error) {
	ctx, done := s.start(ctx, "RefreshLayers")
	defer done(&err)

	s.mu.Lock()
	ticket := s.st.layers.Reserve()
	c := s.client
	s.mu.Unlock()

	layers, err := c.Layers(ctx)
	if err = s.check(ctx, err); err != nil {
		return err
	}
	sortLayers(layers)

	rows := make([]*LayerRow, len(layers))
	ferr := s.fanOut(len(layers), func(i int) error {
		cfg, err := c.LayerConfig(ctx, layers[i])
		if err != nil {
			return err
		}
		row := layerRow(layers[i], cfg)
		rows[i] = &row
		return nil
	})
	if ferr != nil {
		s.check(ctx, ferr)
		s.logError(ferr, "op", "RefreshLayers", "msg", "dropped layers without config")
	}

	kept := make([]LayerRow, 0, len(rows))
	for _, row := range rows {
		if row != nil {
			kept = append(kept, *row)
		}
	}

	s.mu.Lock()
	if s.client == c && s.st.layers.Commit(ticket, kept) {
		s.st.cards = nil
	}
	s.mu.Unlock()
	s.notify()
	return nil
}

// SelectLayer toggles the layer row and rebuilds the status cards of every
// selected layer.
func (s *Session) SelectLayer(ctx context.Context, uid string) (selected bool, err error) {
	ctx, done := s.start(ctx, "SelectLayer")
	defer done(&err)

	s.mu.Lock()
	selected, err = s.st.layers.Toggle(uid)
	s.mu.Unlock()
	if err != nil {
		return false, err
	}
	s.notify()
	return selected, s.refreshCards(ctx, false)
}

// RefreshCards rebuilds the status cards of the selected layers.
func (s *Session) RefreshCards(ctx context.Context) (err error) {
	ctx, done := s.start(ctx, "RefreshCards")
	defer done(&err)
	return s.refreshCards(ctx, false)
}

// refreshCards fetches the status of every selected layer. A layer whose
// status can not be read keeps its previous card. Results are committed only
// while ctx is live, and only for layers that are still selected.
func (s *Session) refreshCards(ctx context.Context, quiet bool) error {
	s.mu.RLock()
	layers := s.st.layers.Selected()
	prev := make(map[string]StatusCard, len(s.st.cards))
	for _, card := range s.st.cards {
		prev[card.UID] = card
	}
	c := s.client
	s.mu.RUnlock()

	type result struct {
		card StatusCard
		ok   bool
		err  error
	}
	results := make([]result, len(layers))
	err := s.fanOut(len(layers), func(i int) error {
		st, err := c.LayerStatus(ctx, layers[i].layer())
		if err != nil {
			results[i].err = err
			return err
		}
		results[i].card, results[i].ok = statusCard(layers[i], st)
		return nil
	})
	if quiet {
		err = s.observe(ctx, "monitor", err)
	} else {
		err = s.check(ctx, err)
	}

	cards := make([]StatusCard, 0, len(layers))
	for i, r := range results {
		switch {
		case r.err != nil:
			if card, ok := prev[layers[i].UID]; ok {
				cards = append(cards, card)
			}
		case r.ok:
			cards = append(cards, r.card)
		}
	}

	s.mu.Lock()
	if ctx.Err() == nil && s.client == c {
		live := cards[:0]
		for _, card := range cards {
			if s.st.layers.IsSelected(card.UID) {
				live = append(live, card)
			}
		}
		s.st.cards = live
	}
	s.mu.Unlock()
	s.notify()
	return err
}

// LayerAction posts action with the selected layers.
func (s *Session) LayerAction(ctx context.Context, action string) (err error) {
	ctx, done := s.start(ctx, "LayerAction")
	defer done(&err)

	s.mu.RLock()
	rows := s.st.layers.Selected()
	c := s.client
	s.mu.RUnlock()
	if len(rows) == 0 {
		return errors.Wrap(ErrNoSelection, "select a layer first")
	}

	layers := make([]d3.Layer, 0, len(rows))
	for _, row := range rows {
		layers = append(layers, row.layer())
	}
	return s.check(ctx, c.LayerAction(ctx, action, layers))
}

// ToggleMonitoring starts or stops refreshing the status cards every
// MonitorInterval. Stopping clears the cards. It reports whether monitoring
// is now on.
func (s *Session) ToggleMonitoring() bool {
	s.mu.Lock()
	if task := s.monitor; task != nil {
		task.Cancel()
		s.monitor = nil
		s.st.monitoring = false
		s.st.cards = nil
		s.mu.Unlock()
		task.Wait()
		s.logInfo("monitoring stopped")
		s.notify()
		return false
	}

	s.monitor = poll.Start(s.ctx, s.clock, MonitorInterval, func(ctx context.Context) {
		s.tick("monitor")
		s.refreshCards(ctx, true)
	})
	s.st.monitoring = true
	s.mu.Unlock()
	s.logInfo("monitoring started", "interval", MonitorInterval)
	s.notify()
	return true
}
