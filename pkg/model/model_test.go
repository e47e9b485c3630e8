package model

import (
	"testing"
)

type recorder struct {
	changes []Change
}

func (r *recorder) OnChange(_ *Component, ch Change) {
	r.changes = append(r.changes, ch)
}

func TestRegistryAddReturnsSameComponent(t *testing.T) {
	r := NewRegistry("drone-1")

	a := r.Add("gimbal")
	b := r.Add("gimbal")
	if a != b {
		t.Error("expected the same component instance")
	}
	if a.DeviceUID() != "drone-1" {
		t.Errorf("DeviceUID: got %q", a.DeviceUID())
	}

	r.Add("network")
	list := r.Components()
	if len(list) != 2 || list[0].Kind() != "gimbal" || list[1].Kind() != "network" {
		t.Errorf("Components: got %v", list)
	}
}

func TestTxSingleNotification(t *testing.T) {
	r := NewRegistry("drone-1")
	c := r.Add("network")

	compObs := &recorder{}
	regObs := &recorder{}
	c.Subscribe(compObs)
	r.Subscribe(regObs)

	tx := c.Begin()
	tx.Set("policy", "cellular")
	tx.Set("quality", 3)
	tx.Set("quality", 4)
	tx.Publish()
	tx.Commit()

	if len(compObs.changes) != 1 || len(regObs.changes) != 1 {
		t.Fatalf("expected one notification each, got %d and %d", len(compObs.changes), len(regObs.changes))
	}
	ch := compObs.changes[0]
	if len(ch.Fields) != 2 || ch.Fields[0] != "policy" || ch.Fields[1] != "quality" {
		t.Errorf("Fields: got %v", ch.Fields)
	}
	if !ch.PublicationChanged || !ch.Published {
		t.Errorf("publication: %+v", ch)
	}

	if v, _ := Value[int](c, "quality"); v != 4 {
		t.Errorf("quality: got %d, want 4", v)
	}
	if !c.Published() {
		t.Error("expected published")
	}
}

func TestTxNoChangeNoNotification(t *testing.T) {
	r := NewRegistry("drone-1")
	c := r.Add("recorder")
	obs := &recorder{}
	c.Subscribe(obs)

	tx := c.Begin()
	tx.Set("pipelines", []string{"a", "b"})
	tx.Commit()

	t.Run("same value", func(t *testing.T) {
		tx := c.Begin()
		tx.Set("pipelines", []string{"a", "b"})
		tx.Commit()
		if len(obs.changes) != 1 {
			t.Errorf("got %d notifications, want 1", len(obs.changes))
		}
	})

	t.Run("set and revert", func(t *testing.T) {
		tx := c.Begin()
		tx.Set("pipelines", []string{"c"})
		tx.Set("pipelines", []string{"a", "b"})
		tx.Commit()
		if len(obs.changes) != 1 {
			t.Errorf("got %d notifications, want 1", len(obs.changes))
		}
	})

	t.Run("clear missing field", func(t *testing.T) {
		tx := c.Begin()
		tx.Clear("nothing")
		tx.Commit()
		if len(obs.changes) != 1 {
			t.Errorf("got %d notifications, want 1", len(obs.changes))
		}
	})

	t.Run("empty batch", func(t *testing.T) {
		c.Begin().Commit()
		if len(obs.changes) != 1 {
			t.Errorf("got %d notifications, want 1", len(obs.changes))
		}
	})
}

func TestTxCommitIdempotent(t *testing.T) {
	r := NewRegistry("drone-1")
	c := r.Add("stereo")
	obs := &recorder{}
	c.Subscribe(obs)

	func() {
		tx := c.Begin()
		defer tx.Commit()
		tx.Set("state", "required")
		tx.Commit()
		// Writes after commit are ignored.
		tx.Set("state", "ok")
	}()

	if len(obs.changes) != 1 {
		t.Errorf("got %d notifications, want 1", len(obs.changes))
	}
	if v, _ := c.Get("state"); v != "required" {
		t.Errorf("state: got %v", v)
	}
}

func TestTxGetSeesStagedWrites(t *testing.T) {
	c := NewRegistry("d").Add("gimbal")

	tx := c.Begin()
	tx.Set("yaw", 1.0)
	tx.Commit()

	tx = c.Begin()
	if v, ok := tx.Get("yaw"); !ok || v != 1.0 {
		t.Errorf("committed value: got %v, %v", v, ok)
	}
	tx.Set("yaw", 2.0)
	if v, _ := tx.Get("yaw"); v != 2.0 {
		t.Errorf("staged value: got %v", v)
	}
	tx.Clear("yaw")
	if _, ok := tx.Get("yaw"); ok {
		t.Error("expected cleared field")
	}
	if v, _ := c.Get("yaw"); v != 1.0 {
		t.Errorf("component must not see staged writes, got %v", v)
	}
	tx.Commit()
	if _, ok := c.Get("yaw"); ok {
		t.Error("expected field removed after commit")
	}
}

func TestUnpublishKeepsFields(t *testing.T) {
	r := NewRegistry("d")
	c := r.Add("network")

	tx := c.Begin()
	tx.Set("policy", "auto")
	tx.Publish()
	tx.Commit()

	obs := &recorder{}
	unsubscribe := r.Subscribe(obs)

	tx = c.Begin()
	tx.Unpublish()
	tx.Commit()

	if c.Published() {
		t.Error("expected unpublished")
	}
	if len(r.Published()) != 0 {
		t.Error("expected no published components")
	}
	if _, ok := c.Get("policy"); !ok {
		t.Error("fields must survive unpublish")
	}
	if len(obs.changes) != 1 || !obs.changes[0].PublicationChanged {
		t.Errorf("changes: %+v", obs.changes)
	}

	unsubscribe()
	tx = c.Begin()
	tx.Publish()
	tx.Commit()
	if len(obs.changes) != 1 {
		t.Error("observer still notified after unsubscribe")
	}
}

func TestValueTypeMismatch(t *testing.T) {
	c := NewRegistry("d").Add("x")
	tx := c.Begin()
	tx.Set("n", "text")
	tx.Commit()

	if _, ok := Value[int](c, "n"); ok {
		t.Error("expected type mismatch")
	}
	if _, ok := Value[int](c, "missing"); ok {
		t.Error("expected missing field")
	}
}
