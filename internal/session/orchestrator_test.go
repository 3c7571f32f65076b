package session_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"slices"
	"strings"
	"sync"
	"testing"
	"testing/iotest"

	"github.com/tjfontaine/blackstories-client/internal/api/blackstories"
	"github.com/tjfontaine/blackstories-client/internal/domain"
	"github.com/tjfontaine/blackstories-client/internal/session"
	"github.com/tjfontaine/blackstories-client/internal/testutil"
	"github.com/tjfontaine/blackstories-client/internal/view"
)

type captureRecorder struct {
	mu    sync.Mutex
	games []domain.GameRef
	cmds  []view.Command
}

func (r *captureRecorder) Record(_ context.Context, game domain.GameRef, cmds []view.Command) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.games = append(r.games, game)
	r.cmds = append(r.cmds, cmds...)
}

func (r *captureRecorder) text() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var b strings.Builder
	for _, c := range r.cmds {
		b.WriteString(c.Text)
		b.WriteByte('\n')
	}
	return b.String()
}

func newOrchestrator(t *testing.T, backend *testutil.FakeBackend, opts ...session.Option) (*session.Orchestrator, *view.Buffer) {
	t.Helper()
	sink := &view.Buffer{}
	client := blackstories.NewClient(blackstories.WithBaseURL(backend.URL))
	opts = append([]session.Option{session.WithSessionID("sess-test")}, opts...)
	return session.New(client, sink, opts...), sink
}

func lanes(msgs []view.Command) []view.Lane {
	out := make([]view.Lane, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, m.Lane)
	}
	return out
}

func countKind(cmds []view.Command, kind view.Kind) int {
	n := 0
	for _, c := range cmds {
		if c.Kind == kind {
			n++
		}
	}
	return n
}

func TestSingleModeGame(t *testing.T) {
	backend := testutil.NewFakeBackend(t)
	backend.Script("/start_game",
		"Narrator: Un hombre yace muerto en un campo.",
		"Detective: ¿Murió por una caída?",
		"",
		"DEBUG: turn 1",
		`{"type": "narrator", "content": "Sí."}`,
		"==== FIN ====",
		"save_conversation",
		`{"type": "summary", "content": "<b>Resumen</b>"}`,
	)
	o, sink := newOrchestrator(t, backend)

	err := o.Start(context.Background(), domain.ModeSingle, domain.StartParams{Difficulty: "media"})
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	if got := o.State(); got != domain.TurnCompleted {
		t.Errorf("State() = %s, want completed", got)
	}

	want := []view.Lane{
		view.LaneSystem, // start notice
		view.LaneMystery,
		view.LaneDetective,
		view.LaneNarrator,
		view.LaneSystem,
		view.LaneSummary,
	}
	msgs := sink.Messages()
	if got := lanes(msgs); !slices.Equal(got, want) {
		t.Fatalf("lanes = %v, want %v", got, want)
	}
	if msgs[1].Text != "Un hombre yace muerto en un campo." {
		t.Errorf("mystery text = %q", msgs[1].Text)
	}
	if n := countKind(sink.Commands(), view.KindOfferSave); n != 1 {
		t.Errorf("offer_save commands = %d, want 1", n)
	}

	reqs := backend.Requests()
	if len(reqs) != 1 || reqs[0].Body["session_id"] != "sess-test" || reqs[0].Body["difficulty"] != "media" {
		t.Errorf("requests = %+v", reqs)
	}
}

func TestUnterminatedFinalLine(t *testing.T) {
	backend := testutil.NewFakeBackend(t)
	backend.SetChunkSize(3)
	backend.Script("/start_council",
		`{"type": "narrator", "content": "Misterio del faro"}`,
		`{"type": "council_visionary", "content": "Quizá un barco"}`,
		`{"type": "council_leader", "content": "Concluimos"}`,
	)
	o, sink := newOrchestrator(t, backend)

	if err := o.Start(context.Background(), domain.ModeCouncil, domain.StartParams{}); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	msgs := sink.Messages()
	last := msgs[len(msgs)-1]
	if last.Lane != view.LaneLeader || last.Text != "Concluimos" {
		t.Errorf("last message = %+v, want the unterminated leader line", last)
	}
}

func TestSessionIDReusedAcrossGames(t *testing.T) {
	backend := testutil.NewFakeBackend(t)
	backend.Script("/start_game", "Narrator: uno")
	backend.Script("/start_game", "Narrator: dos")
	o, sink := newOrchestrator(t, backend)
	ctx := context.Background()

	if err := o.Start(ctx, domain.ModeSingle, domain.StartParams{}); err != nil {
		t.Fatalf("first Start() error = %v", err)
	}
	first, _ := o.Session()
	if err := o.Start(ctx, domain.ModeSingle, domain.StartParams{}); err != nil {
		t.Fatalf("second Start() error = %v", err)
	}
	second, _ := o.Session()

	if first.ID != second.ID || first.ID != "sess-test" {
		t.Errorf("session ids = %q, %q", first.ID, second.ID)
	}
	if first.GameID == second.GameID {
		t.Errorf("games share id %q", first.GameID)
	}

	// the second game reveals its own mystery
	mysteries := 0
	for _, m := range sink.Messages() {
		if m.Lane == view.LaneMystery {
			mysteries++
		}
	}
	if mysteries != 2 {
		t.Errorf("mystery reveals = %d, want 2", mysteries)
	}
}

func TestInteractiveGame(t *testing.T) {
	backend := testutil.NewFakeBackend(t)
	backend.Script("/start_interactive",
		`{"type": "narrator", "content": "Un hombre en un bar pide agua."}`,
		`{"type": "interactive_ready", "content": "Ya puedes preguntar"}`,
	)
	backend.Reply("/ask_narrator", http.StatusOK, map[string]string{"answer": "Sí."})
	backend.Reply("/get_hint", http.StatusOK, map[string]string{"hint": "Piensa en el hipo"})
	backend.Script("/solve_mystery",
		`{"type": "narrator", "content": "¡Correcto! Tenía hipo."}`,
		`{"type": "summary", "content": "<p>fin</p>"}`,
	)
	o, sink := newOrchestrator(t, backend)
	ctx := context.Background()

	if err := o.SubmitUserTurn(ctx, "¿antes de empezar?"); !errors.Is(err, domain.ErrInvalidState) {
		t.Fatalf("SubmitUserTurn() before start error = %v", err)
	}

	if err := o.Start(ctx, domain.ModeInteractive, domain.StartParams{}); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if got := o.State(); got != domain.TurnAwaitingUserInput {
		t.Fatalf("State() after ready stream = %s, want awaiting_user_input", got)
	}

	if err := o.SubmitUserTurn(ctx, "   "); !errors.Is(err, domain.ErrUserInput) {
		t.Errorf("SubmitUserTurn(blank) error = %v, want user input", err)
	}

	if err := o.SubmitUserTurn(ctx, "¿Tenía hipo?"); err != nil {
		t.Fatalf("SubmitUserTurn() error = %v", err)
	}
	if err := o.RequestHint(ctx); err != nil {
		t.Fatalf("RequestHint() error = %v", err)
	}
	if err := o.SubmitSolution(ctx, "Tenía hipo y el susto se lo quitó"); err != nil {
		t.Fatalf("SubmitSolution() error = %v", err)
	}
	if got := o.State(); got != domain.TurnCompleted {
		t.Errorf("State() after verdict = %s, want completed", got)
	}

	var texts []string
	for _, m := range sink.Messages() {
		texts = append(texts, m.Text)
	}
	joined := strings.Join(texts, "\n")
	for _, want := range []string{
		"¿Tenía hipo?",
		"Sí.",
		"Solicitando pista a Watson...",
		"💡 Pista de Watson: Piensa en el hipo",
		"Solución propuesta: Tenía hipo y el susto se lo quitó",
		"¡Correcto! Tenía hipo.",
	} {
		if !strings.Contains(joined, want) {
			t.Errorf("conversation is missing %q:\n%s", want, joined)
		}
	}

	paths := strings.Join(backend.Paths(), " ")
	if paths != "/start_interactive /ask_narrator /get_hint /solve_mystery" {
		t.Errorf("paths = %s", paths)
	}
	reqs := backend.Requests()
	if reqs[1].Body["question"] != "¿Tenía hipo?" || reqs[1].Body["session_id"] != "sess-test" {
		t.Errorf("ask body = %+v", reqs[1].Body)
	}
}

func TestInverseGameKeepsSolutionPrivate(t *testing.T) {
	backend := testutil.NewFakeBackend(t)
	backend.Script("/start_inverse",
		`{"type": "status", "content": "generando"}`,
		`{"type": "inverse_init", "mystery": "Un hombre muere en su casa.", "solution": "Era un muñeco de nieve"}`,
		`{"type": "inverse_question", "content": "¿Era una persona?"}`,
	)
	backend.Script("/inverse_answer",
		`{"type": "inverse_question", "content": "¿Se derritió?"}`,
	)
	rec := &captureRecorder{}
	o, sink := newOrchestrator(t, backend, session.WithRecorder(rec))
	ctx := context.Background()

	if err := o.Start(ctx, domain.ModeInverse, domain.StartParams{DetectiveModel: "det"}); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if got := o.State(); got != domain.TurnAwaitingUserChoice {
		t.Fatalf("State() = %s, want awaiting_user_choice", got)
	}
	sess, _ := o.Session()
	if sess.Solution != "Era un muñeco de nieve" {
		t.Errorf("Session().Solution = %q", sess.Solution)
	}

	if err := o.SubmitChoice(ctx, "Quizás"); !errors.Is(err, domain.ErrUserInput) {
		t.Errorf("SubmitChoice(free text) error = %v", err)
	}
	if err := o.SubmitChoice(ctx, "No"); err != nil {
		t.Fatalf("SubmitChoice() error = %v", err)
	}
	if got := o.State(); got != domain.TurnAwaitingUserChoice {
		t.Errorf("State() after follow-up = %s, want awaiting_user_choice", got)
	}

	if strings.Contains(rec.text(), "muñeco") {
		t.Errorf("recorded transcript leaks the solution:\n%s", rec.text())
	}
	for _, g := range rec.games {
		if g.GameID != sess.GameID || g.SessionID != "sess-test" || g.Mode != domain.ModeInverse {
			t.Errorf("recorded game = %+v", g)
		}
	}
	seen := false
	for _, c := range sink.Commands() {
		if strings.Contains(c.Text, "muñeco") {
			seen = c.Audience == view.AudienceNarrator
		}
	}
	if !seen {
		t.Errorf("local sink never showed the solution to the narrator")
	}
	if n := countKind(sink.Commands(), view.KindPromptChoice); n != 2 {
		t.Errorf("choice prompts = %d, want 2", n)
	}

	reqs := backend.Requests()
	if reqs[1].Path != "/inverse_answer" || reqs[1].Body["answer"] != "No" {
		t.Errorf("answer request = %+v", reqs[1])
	}
}

func TestInverseBannerStaysPrivate(t *testing.T) {
	backend := testutil.NewFakeBackend(t)
	backend.Script("/start_inverse",
		"============================================================",
		"                  BLACK STORIES AI (MODO INVERSO)",
		"============================================================",
		"Narrador: TÚ",
		"Detective: det",
		"Dificultad: media",
		"------------------------------------------------------------",
		"Misterio: Un hombre muere en su casa.",
		"------------------------------------------------------------",
		"Solución (SOLO PARA TUS OJOS): Era un muñeco de nieve",
		"============================================================",
		`{"type": "inverse_init", "mystery": "Un hombre muere en su casa.", "solution": "Era un muñeco de nieve"}`,
		`{"type": "status", "content": "El Detective está pensando..."}`,
		`{"type": "inverse_question", "content": "¿Era una persona?"}`,
	)
	rec := &captureRecorder{}
	o, sink := newOrchestrator(t, backend, session.WithRecorder(rec))

	if err := o.Start(context.Background(), domain.ModeInverse, domain.StartParams{DetectiveModel: "det"}); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if got := o.State(); got != domain.TurnAwaitingUserChoice {
		t.Fatalf("State() = %s, want awaiting_user_choice", got)
	}
	if strings.Contains(rec.text(), "muñeco") {
		t.Errorf("recorded transcript leaks the solution:\n%s", rec.text())
	}
	if !strings.Contains(rec.text(), "¿Era una persona?") {
		t.Errorf("recorded transcript is missing the question:\n%s", rec.text())
	}

	var shown int
	for _, c := range sink.Commands() {
		if strings.Contains(c.Text, "muñeco") {
			shown++
			if c.Audience != view.AudienceNarrator {
				t.Errorf("solution shown to a shared audience: %+v", c)
			}
		}
	}
	if shown == 0 {
		t.Errorf("local sink never showed the solution to the narrator")
	}
}

func TestStartRejectedWhileStreaming(t *testing.T) {
	backend := testutil.NewFakeBackend(t)
	backend.Script("/start_fight", `{"type": "detective1", "content": "Detective 1 pregunta: ¿Hubo testigos?"}`)
	opened, release := backend.Hold("/start_fight")
	defer release()
	o, _ := newOrchestrator(t, backend)
	ctx := context.Background()

	done := make(chan error, 1)
	go func() {
		done <- o.Start(ctx, domain.ModeFight, domain.StartParams{})
	}()
	<-opened

	if err := o.Start(ctx, domain.ModeSingle, domain.StartParams{}); !errors.Is(err, domain.ErrBusy) {
		t.Errorf("concurrent Start() error = %v, want busy", err)
	}
	if err := o.Save(ctx); !errors.Is(err, domain.ErrInvalidState) {
		t.Errorf("Save() while running error = %v, want invalid state", err)
	}

	release()
	if err := <-done; err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if got := o.State(); got != domain.TurnCompleted {
		t.Errorf("State() = %s, want completed", got)
	}
	if n := len(backend.Requests()); n != 1 {
		t.Errorf("backend saw %d requests, want 1", n)
	}
}

func TestStartProtocolError(t *testing.T) {
	backend := testutil.NewFakeBackend(t)
	o, sink := newOrchestrator(t, backend)

	err := o.Start(context.Background(), domain.ModeSingle, domain.StartParams{})
	if !errors.Is(err, domain.ErrProtocol) {
		t.Fatalf("Start() error = %v, want protocol", err)
	}
	if got := o.State(); got != domain.TurnErrored {
		t.Errorf("State() = %s, want errored", got)
	}
	msgs := sink.Messages()
	if last := msgs[len(msgs)-1]; last.Text != "Error: no script for /start_game" {
		t.Errorf("last message = %q", last.Text)
	}
}

func TestErrorEventKeepsDisplaying(t *testing.T) {
	backend := testutil.NewFakeBackend(t)
	backend.Script("/start_game",
		"Narrator: misterio",
		"Error: el narrador falló",
		"Narrator: sigo aquí",
	)
	o, sink := newOrchestrator(t, backend)

	if err := o.Start(context.Background(), domain.ModeSingle, domain.StartParams{}); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if got := o.State(); got != domain.TurnErrored {
		t.Errorf("State() = %s, want errored", got)
	}
	msgs := sink.Messages()
	if last := msgs[len(msgs)-1]; last.Text != "sigo aquí" {
		t.Errorf("last message = %q, want the line after the error", last.Text)
	}
	// no reply scripted: the save is allowed and fails at the backend
	if err := o.Save(context.Background()); !errors.Is(err, domain.ErrProtocol) {
		t.Errorf("Save() error = %v, want protocol", err)
	}
}

func TestSaveConversation(t *testing.T) {
	backend := testutil.NewFakeBackend(t)
	backend.Script("/start_game", "Narrator: x", "save_conversation")
	backend.Reply("/save_conversation", http.StatusOK, map[string]any{"status": "success", "message": "ok"})
	o, sink := newOrchestrator(t, backend)
	ctx := context.Background()

	if err := o.Save(ctx); !errors.Is(err, domain.ErrInvalidState) {
		t.Errorf("Save() before start error = %v", err)
	}
	if err := o.Start(ctx, domain.ModeSingle, domain.StartParams{}); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := o.Save(ctx); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	msgs := sink.Messages()
	if last := msgs[len(msgs)-1]; last.Text != "Conversation saved successfully!" {
		t.Errorf("last message = %q", last.Text)
	}
}

// stubTransport serves canned bodies and can block the narrator exchange.
type stubTransport struct {
	body    func() io.ReadCloser
	askGate chan struct{}
	asked   chan struct{}
}

func (s *stubTransport) Start(context.Context, string, domain.Mode, domain.StartParams) (io.ReadCloser, error) {
	return s.body(), nil
}

func (s *stubTransport) SubmitAnswer(context.Context, string, string) (io.ReadCloser, error) {
	return s.body(), nil
}

func (s *stubTransport) SubmitSolution(context.Context, string, string) (io.ReadCloser, error) {
	return s.body(), nil
}

func (s *stubTransport) AskNarrator(ctx context.Context, _, _ string) (string, error) {
	if s.asked != nil {
		close(s.asked)
	}
	if s.askGate != nil {
		<-s.askGate
	}
	return "No.", nil
}

func (s *stubTransport) RequestHint(context.Context, string) (string, error) {
	return "", domain.ErrTransportFailure("hint", errors.New("connection reset"))
}

func (s *stubTransport) SaveConversation(context.Context, string) (domain.SaveResult, error) {
	return domain.SaveResult{OK: true}, nil
}

func TestTransportFailureMidStream(t *testing.T) {
	transport := &stubTransport{body: func() io.ReadCloser {
		return io.NopCloser(io.MultiReader(
			strings.NewReader("Narrator: misterio\nNarrator: parcial"),
			iotest.ErrReader(errors.New("connection reset by peer")),
		))
	}}
	sink := &view.Buffer{}
	o := session.New(transport, sink)

	err := o.Start(context.Background(), domain.ModeFight, domain.StartParams{})
	if !errors.Is(err, domain.ErrTransport) {
		t.Fatalf("Start() error = %v, want transport", err)
	}
	if got := o.State(); got != domain.TurnErrored {
		t.Errorf("State() = %s, want errored", got)
	}
	msgs := sink.Messages()
	last := msgs[len(msgs)-1]
	if last.Lane != view.LaneError || !strings.HasPrefix(last.Text, "Connection error: ") {
		t.Errorf("last message = %+v", last)
	}
	for _, m := range msgs {
		if m.Text == "parcial" {
			t.Errorf("partial line was shown after a transport failure")
		}
	}

	// a new game may start after the failure
	transport.body = func() io.ReadCloser { return io.NopCloser(strings.NewReader("Narrator: otra")) }
	if err := o.Start(context.Background(), domain.ModeFight, domain.StartParams{}); err != nil {
		t.Fatalf("restart error = %v", err)
	}
	if got := o.State(); got != domain.TurnCompleted {
		t.Errorf("State() after restart = %s", got)
	}
}

func TestAskRejectedWhileOutstanding(t *testing.T) {
	transport := &stubTransport{
		body:    func() io.ReadCloser { return io.NopCloser(strings.NewReader(`{"type":"interactive_ready","content":"listo"}`)) },
		askGate: make(chan struct{}),
		asked:   make(chan struct{}),
	}
	sink := &view.Buffer{}
	o := session.New(transport, sink)
	ctx := context.Background()

	if err := o.Start(ctx, domain.ModeInteractive, domain.StartParams{}); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- o.SubmitUserTurn(ctx, "¿primera?") }()
	<-transport.asked

	if err := o.SubmitUserTurn(ctx, "¿segunda?"); !errors.Is(err, domain.ErrBusy) {
		t.Errorf("second SubmitUserTurn() error = %v, want busy", err)
	}
	close(transport.askGate)
	if err := <-done; err != nil {
		t.Fatalf("SubmitUserTurn() error = %v", err)
	}

	if err := o.RequestHint(ctx); !errors.Is(err, domain.ErrTransport) {
		t.Errorf("RequestHint() error = %v, want transport", err)
	}
	msgs := sink.Messages()
	if last := msgs[len(msgs)-1]; last.Text != "Error de red: connection reset" {
		t.Errorf("last message = %q", last.Text)
	}
	if got := o.State(); got != domain.TurnAwaitingUserInput {
		t.Errorf("State() = %s, a side channel failure changed the turn state", got)
	}
}
