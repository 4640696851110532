package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	activitymodel "ActivityBot/module/activity/model"
)

// fakeStore 模拟文档库的原子自增语义，方法在锁内完成读改写。
type fakeStore struct {
	mu      sync.Mutex
	records map[string]*activitymodel.ActivityRecord

	incCalls      int
	failIncrement bool
	findErr       error
}

func newFakeStore() *fakeStore {
	return &fakeStore{records: make(map[string]*activitymodel.ActivityRecord)}
}

func (f *fakeStore) IncrementMessage(_ context.Context, guildID, userID, userName string) (*activitymodel.ActivityRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.incCalls++
	if f.failIncrement {
		return nil, errors.New("storage unavailable")
	}

	id := activitymodel.ActivityID(guildID, userID)
	rec, ok := f.records[id]
	if !ok {
		rec = &activitymodel.ActivityRecord{ID: id, GuildID: guildID, UserID: userID}
		f.records[id] = rec
	}
	rec.UserName = userName
	rec.SendMessages++
	rec.XP += 10
	cp := *rec
	return &cp, nil
}

func (f *fakeStore) AddVoiceSeconds(_ context.Context, guildID, userID, userName string, seconds int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	id := activitymodel.ActivityID(guildID, userID)
	rec, ok := f.records[id]
	if !ok {
		rec = &activitymodel.ActivityRecord{ID: id, GuildID: guildID, UserID: userID}
		f.records[id] = rec
	}
	rec.UserName = userName
	rec.VoiceSeconds += seconds
	return nil
}

func (f *fakeStore) Find(_ context.Context, guildID, userID string) (*activitymodel.ActivityRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.findErr != nil {
		return nil, f.findErr
	}
	rec, ok := f.records[activitymodel.ActivityID(guildID, userID)]
	if !ok {
		return nil, nil
	}
	cp := *rec
	return &cp, nil
}

func (f *fakeStore) TopByXP(_ context.Context, guildID string, limit int64) ([]activitymodel.ActivityRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var rows []activitymodel.ActivityRecord
	for _, rec := range f.records {
		if rec.GuildID == guildID {
			rows = append(rows, *rec)
		}
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].XP > rows[j].XP })
	if int64(len(rows)) > limit {
		rows = rows[:limit]
	}
	return rows, nil
}

func (f *fakeStore) record(guildID, userID string) *activitymodel.ActivityRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.records[activitymodel.ActivityID(guildID, userID)]
	if !ok {
		return nil
	}
	cp := *rec
	return &cp
}

func newTestEngine(t *testing.T, st ActivityStore) *Engine {
	t.Helper()
	e := NewEngine(st, nil)
	t.Cleanup(e.Close)
	return e
}

func qualifyingEvent() MessageEvent {
	return MessageEvent{
		GuildID:   "g1",
		ChannelID: "c1",
		UserID:    "u1",
		UserName:  "Alice",
	}
}

func TestRecordMessageCreatesThenIncrements(t *testing.T) {
	st := newFakeStore()
	e := newTestEngine(t, st)
	ctx := context.Background()

	now := time.Unix(1000, 0)
	e.throttle.now = func() time.Time { return now }

	e.RecordMessage(ctx, qualifyingEvent())
	rec := st.record("g1", "u1")
	if rec == nil {
		t.Fatal("first qualifying message should create a record")
	}
	if rec.SendMessages != 1 || rec.XP != 10 {
		t.Fatalf("after first message: sendMessages=%d xp=%d, want 1/10", rec.SendMessages, rec.XP)
	}

	// 过了冷却窗口，第二条消息正常累加，同时名字漂移被覆盖
	now = now.Add(ActivityCooldown)
	ev := qualifyingEvent()
	ev.UserName = "AliceNew"
	e.RecordMessage(ctx, ev)

	rec = st.record("g1", "u1")
	if rec.SendMessages != 2 || rec.XP != 20 {
		t.Fatalf("after second message: sendMessages=%d xp=%d, want 2/20", rec.SendMessages, rec.XP)
	}
	if rec.UserName != "AliceNew" {
		t.Fatalf("userName = %q, want AliceNew", rec.UserName)
	}
}

func TestRecordMessageThrottlesRepeats(t *testing.T) {
	st := newFakeStore()
	e := newTestEngine(t, st)
	ctx := context.Background()

	now := time.Unix(1000, 0)
	e.throttle.now = func() time.Time { return now }

	e.RecordMessage(ctx, qualifyingEvent())
	now = now.Add(ActivityCooldown / 2)
	e.RecordMessage(ctx, qualifyingEvent())

	if st.incCalls != 1 {
		t.Fatalf("store calls = %d, want 1 (second message throttled)", st.incCalls)
	}
}

func TestRecordMessageExclusions(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*MessageEvent)
	}{
		{"own message", func(ev *MessageEvent) { ev.IsOwnMessage = true }},
		{"direct message", func(ev *MessageEvent) { ev.IsDirectMessage = true }},
		{"bot author", func(ev *MessageEvent) { ev.IsBot = true }},
		{"missing user id", func(ev *MessageEvent) { ev.UserID = "" }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			st := newFakeStore()
			e := newTestEngine(t, st)

			ev := qualifyingEvent()
			tc.mutate(&ev)
			e.RecordMessage(context.Background(), ev)

			if st.incCalls != 0 {
				t.Fatalf("store touched for excluded event: %d calls", st.incCalls)
			}
			e.throttle.mu.Lock()
			size := len(e.throttle.seen)
			e.throttle.mu.Unlock()
			if size != 0 {
				t.Fatalf("throttle consulted for excluded event: %d entries", size)
			}
		})
	}
}

func TestRecordMessageStorageFailureIsSwallowed(t *testing.T) {
	st := newFakeStore()
	st.failIncrement = true
	e := newTestEngine(t, st)

	// 只要不 panic、不传播就算通过
	e.RecordMessage(context.Background(), qualifyingEvent())

	if st.incCalls != 1 {
		t.Fatalf("store calls = %d, want 1", st.incCalls)
	}
}

func TestConcurrentIncrementsForSameRecord(t *testing.T) {
	st := newFakeStore()
	e := newTestEngine(t, st)

	// 同一用户在两个频道发消息：节流 key 不同，落到同一条记录
	ev1 := qualifyingEvent()
	ev2 := qualifyingEvent()
	ev2.ChannelID = "c2"

	var wg sync.WaitGroup
	for _, ev := range []MessageEvent{ev1, ev2} {
		wg.Add(1)
		go func(ev MessageEvent) {
			defer wg.Done()
			e.RecordMessage(context.Background(), ev)
		}(ev)
	}
	wg.Wait()

	rec := st.record("g1", "u1")
	if rec == nil || rec.SendMessages != 2 {
		t.Fatalf("concurrent increments lost an update: %+v", rec)
	}
}

func TestOverview(t *testing.T) {
	st := newFakeStore()
	e := newTestEngine(t, st)
	ctx := context.Background()

	ov, err := e.Overview(ctx, "g1", "nobody")
	if err != nil {
		t.Fatalf("missing record must not be an error: %v", err)
	}
	if ov != nil {
		t.Fatalf("overview for missing record = %+v, want nil", ov)
	}

	st.records[activitymodel.ActivityID("g1", "u1")] = &activitymodel.ActivityRecord{
		ID: "g1:u1", GuildID: "g1", UserID: "u1", UserName: "Alice",
		SendMessages: 23, XP: 230, VoiceSeconds: 120,
	}

	ov, err = e.Overview(ctx, "g1", "u1")
	if err != nil {
		t.Fatalf("Overview: %v", err)
	}
	if ov.UserName != "Alice" || ov.SendMessages != 23 || ov.VoiceSeconds != 120 {
		t.Fatalf("overview fields wrong: %+v", ov)
	}
	if ov.CurrentLevel != 2 { // 230 >= 220
		t.Fatalf("CurrentLevel = %d, want 2", ov.CurrentLevel)
	}
}

func TestOverviewPropagatesStorageFailure(t *testing.T) {
	st := newFakeStore()
	st.findErr = errors.New("connection reset")
	e := newTestEngine(t, st)

	if _, err := e.Overview(context.Background(), "g1", "u1"); err == nil {
		t.Fatal("connectivity failure must propagate")
	}
}

func TestVoiceSessionAccumulation(t *testing.T) {
	st := newFakeStore()
	e := newTestEngine(t, st)
	ctx := context.Background()

	start := time.Unix(1000, 0)
	e.VoiceJoin("g1", "c1", "u1", "Alice", start)
	// 换频道不重置计时
	e.VoiceJoin("g1", "c2", "u1", "Alice", start.Add(10*time.Second))
	e.VoiceLeave(ctx, "g1", "u1", start.Add(65*time.Second))

	rec := st.record("g1", "u1")
	if rec == nil || rec.VoiceSeconds != 65 {
		t.Fatalf("voiceSeconds wrong: %+v", rec)
	}

	// 没有会话的 leave 是孤儿事件，直接忽略
	e.VoiceLeave(ctx, "g1", "u1", start.Add(100*time.Second))
	rec = st.record("g1", "u1")
	if rec.VoiceSeconds != 65 {
		t.Fatalf("orphan leave changed voiceSeconds: %+v", rec)
	}
}

func TestVoiceSessionsFlushedOnClose(t *testing.T) {
	st := newFakeStore()
	e := NewEngine(st, nil)

	start := time.Unix(1000, 0)
	e.now = func() time.Time { return start.Add(30 * time.Second) }
	e.VoiceJoin("g1", "c1", "u1", "Alice", start)

	e.Close()

	rec := st.record("g1", "u1")
	if rec == nil || rec.VoiceSeconds != 30 {
		t.Fatalf("open session not flushed on close: %+v", rec)
	}
}

func TestLeaderboardOrdering(t *testing.T) {
	st := newFakeStore()
	e := newTestEngine(t, st)
	ctx := context.Background()

	for _, rec := range []*activitymodel.ActivityRecord{
		{ID: "g1:a", GuildID: "g1", UserID: "a", UserName: "A", XP: 50},
		{ID: "g1:b", GuildID: "g1", UserID: "b", UserName: "B", XP: 500},
		{ID: "g1:c", GuildID: "g1", UserID: "c", UserName: "C", XP: 120},
		{ID: "g2:d", GuildID: "g2", UserID: "d", UserName: "D", XP: 9000},
	} {
		st.records[rec.ID] = rec
	}

	rows, err := e.Leaderboard(ctx, "g1", 2)
	if err != nil {
		t.Fatalf("Leaderboard: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("rows = %d, want 2", len(rows))
	}
	if rows[0].UserID != "b" || rows[1].UserID != "c" {
		t.Fatalf("wrong ordering: %s, %s", rows[0].UserID, rows[1].UserID)
	}
}
