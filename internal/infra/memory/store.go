package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"trivia-game-service/internal/domain"
	"trivia-game-service/internal/game"
)

// Store is the in-memory fixture backend implementing both game.Store and
// game.QuestionBank. It is selected once at startup when no database is
// configured; there is no per-call fallback branching anywhere else.
type Store struct {
	mu   sync.Mutex
	txMu sync.Mutex

	nextID int64

	users          map[int64]domain.User
	themes         map[int64]domain.Theme
	questions      map[int64]domain.Question
	games          map[int64]domain.Game
	players        map[int64]domain.GamePlayer
	rounds         map[int64]domain.Round
	roundQuestions map[int64]domain.RoundQuestion
	answers        map[int64]domain.Answer
	usedQuestions  map[int64]map[int64]bool // gameID -> questionID
}

var _ game.Store = (*Store)(nil)
var _ game.QuestionBank = (*Store)(nil)

func NewStore() *Store {
	return &Store{
		nextID:         1,
		users:          make(map[int64]domain.User),
		themes:         make(map[int64]domain.Theme),
		questions:      make(map[int64]domain.Question),
		games:          make(map[int64]domain.Game),
		players:        make(map[int64]domain.GamePlayer),
		rounds:         make(map[int64]domain.Round),
		roundQuestions: make(map[int64]domain.RoundQuestion),
		answers:        make(map[int64]domain.Answer),
		usedQuestions:  make(map[int64]map[int64]bool),
	}
}

func (s *Store) allocID() int64 {
	id := s.nextID
	s.nextID++
	return id
}

// RunInTx serializes transactional callbacks and hands fn a journaling view:
// every write records an undo step, so a failed callback unwinds only its own
// rows. Writes committed outside the transaction are untouched by rollback.
func (s *Store) RunInTx(ctx context.Context, fn func(ctx context.Context, tx game.Store) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	tx := &txStore{Store: s}
	if err := fn(ctx, tx); err != nil {
		tx.rollback()
		return err
	}
	return nil
}

// txStore is the transaction view: reads hit the base store, writes journal
// an undo step before applying.
type txStore struct {
	*Store
	undo []func()
}

var _ game.Store = (*txStore)(nil)

// RunInTx on an open transaction reuses it, like the postgres store.
func (t *txStore) RunInTx(ctx context.Context, fn func(ctx context.Context, tx game.Store) error) error {
	return fn(ctx, t)
}

func (t *txStore) rollback() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i := len(t.undo) - 1; i >= 0; i-- {
		t.undo[i]()
	}
	t.undo = nil
}

func (t *txStore) CreateGame(ctx context.Context, g *domain.Game, players []*domain.GamePlayer) error {
	return t.Store.createGame(g, players, &t.undo)
}

func (t *txStore) UpdateGame(ctx context.Context, g *domain.Game) error {
	return t.Store.updateGame(g, &t.undo)
}

func (t *txStore) CreateRound(ctx context.Context, round *domain.Round, questions []*domain.RoundQuestion, used []*domain.GameUsedQuestion) error {
	return t.Store.createRound(round, questions, used, &t.undo)
}

func (t *txStore) UpdateRound(ctx context.Context, round *domain.Round) error {
	return t.Store.updateRound(round, &t.undo)
}

func (t *txStore) MarkQuestionDisplayed(ctx context.Context, roundQuestionID int64, at time.Time) error {
	return t.Store.markQuestionDisplayed(roundQuestionID, at, &t.undo)
}

func (t *txStore) UpdatePlayer(ctx context.Context, player *domain.GamePlayer) error {
	return t.Store.updatePlayer(player, &t.undo)
}

func (t *txStore) UpsertAnswer(ctx context.Context, answer *domain.Answer) error {
	return t.Store.upsertAnswer(answer, &t.undo)
}

// AddUser seeds a user record; fixture and test helper.
func (s *Store) AddUser(u domain.User) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u.ID == 0 {
		u.ID = s.allocID()
	}
	s.users[u.ID] = u
	return u.ID
}

// AddTheme seeds a theme record.
func (s *Store) AddTheme(t domain.Theme) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t.ID == 0 {
		t.ID = s.allocID()
	}
	s.themes[t.ID] = t
	return t.ID
}

// AddQuestion seeds an immutable question record.
func (s *Store) AddQuestion(q domain.Question) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if q.ID == 0 {
		q.ID = s.allocID()
	}
	s.questions[q.ID] = q
	return q.ID
}

func (s *Store) CreateGame(ctx context.Context, g *domain.Game, players []*domain.GamePlayer) error {
	return s.createGame(g, players, nil)
}

func (s *Store) createGame(g *domain.Game, players []*domain.GamePlayer, undo *[]func()) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	g.ID = s.allocID()
	if g.Status == "" {
		g.Status = domain.GameWaiting
	}
	s.games[g.ID] = *g
	gameID := g.ID
	playerIDs := make([]int64, 0, len(players))
	for _, p := range players {
		p.ID = s.allocID()
		p.GameID = g.ID
		s.players[p.ID] = *p
		playerIDs = append(playerIDs, p.ID)
	}
	if undo != nil {
		*undo = append(*undo, func() {
			delete(s.games, gameID)
			for _, id := range playerIDs {
				delete(s.players, id)
			}
		})
	}
	return nil
}

func (s *Store) GetGame(ctx context.Context, id int64) (*domain.Game, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.games[id]
	if !ok {
		return nil, domain.ErrGameNotFound
	}
	return &g, nil
}

func (s *Store) UpdateGame(ctx context.Context, g *domain.Game) error {
	return s.updateGame(g, nil)
}

func (s *Store) updateGame(g *domain.Game, undo *[]func()) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev, ok := s.games[g.ID]
	if !ok {
		return domain.ErrGameNotFound
	}
	if undo != nil {
		*undo = append(*undo, func() { s.games[prev.ID] = prev })
	}
	s.games[g.ID] = *g
	return nil
}

func (s *Store) CreateRound(ctx context.Context, round *domain.Round, questions []*domain.RoundQuestion, used []*domain.GameUsedQuestion) error {
	return s.createRound(round, questions, used, nil)
}

func (s *Store) createRound(round *domain.Round, questions []*domain.RoundQuestion, used []*domain.GameUsedQuestion, undo *[]func()) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.rounds {
		if r.GameID == round.GameID && r.RoundNumber == round.RoundNumber {
			return domain.ErrDuplicateRound
		}
	}
	round.ID = s.allocID()
	if round.Status == "" {
		round.Status = domain.RoundNotStarted
	}
	s.rounds[round.ID] = *round
	roundID := round.ID
	rqIDs := make([]int64, 0, len(questions))
	for _, rq := range questions {
		rq.ID = s.allocID()
		rq.RoundID = round.ID
		s.roundQuestions[rq.ID] = *rq
		rqIDs = append(rqIDs, rq.ID)
	}
	type usedPair struct{ gameID, questionID int64 }
	added := make([]usedPair, 0, len(used))
	for _, u := range used {
		if s.usedQuestions[u.GameID] == nil {
			s.usedQuestions[u.GameID] = make(map[int64]bool)
		}
		if !s.usedQuestions[u.GameID][u.QuestionID] {
			s.usedQuestions[u.GameID][u.QuestionID] = true
			added = append(added, usedPair{u.GameID, u.QuestionID})
		}
	}
	if undo != nil {
		*undo = append(*undo, func() {
			delete(s.rounds, roundID)
			for _, id := range rqIDs {
				delete(s.roundQuestions, id)
			}
			for _, p := range added {
				delete(s.usedQuestions[p.gameID], p.questionID)
			}
		})
	}
	return nil
}

func (s *Store) GetRound(ctx context.Context, id int64) (*domain.Round, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rounds[id]
	if !ok {
		return nil, domain.ErrRoundNotFound
	}
	return &r, nil
}

func (s *Store) RoundByNumber(ctx context.Context, gameID int64, number int) (*domain.Round, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.rounds {
		if r.GameID == gameID && r.RoundNumber == number {
			r := r
			return &r, nil
		}
	}
	return nil, nil
}

func (s *Store) RoundInProgress(ctx context.Context, gameID int64) (*domain.Round, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.rounds {
		if r.GameID == gameID && r.Status == domain.RoundInProgress {
			r := r
			return &r, nil
		}
	}
	return nil, nil
}

func (s *Store) MaxRoundNumber(ctx context.Context, gameID int64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	max := 0
	for _, r := range s.rounds {
		if r.GameID == gameID && r.RoundNumber > max {
			max = r.RoundNumber
		}
	}
	return max, nil
}

func (s *Store) UpdateRound(ctx context.Context, round *domain.Round) error {
	return s.updateRound(round, nil)
}

func (s *Store) updateRound(round *domain.Round, undo *[]func()) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev, ok := s.rounds[round.ID]
	if !ok {
		return domain.ErrRoundNotFound
	}
	if undo != nil {
		*undo = append(*undo, func() { s.rounds[prev.ID] = prev })
	}
	s.rounds[round.ID] = *round
	return nil
}

func (s *Store) GetRoundQuestion(ctx context.Context, id int64) (*domain.RoundQuestion, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rq, ok := s.roundQuestions[id]
	if !ok {
		return nil, domain.ErrRoundQuestionNotFound
	}
	return &rq, nil
}

func (s *Store) LatestDisplayedQuestion(ctx context.Context, roundID int64) (*domain.RoundQuestion, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var latest *domain.RoundQuestion
	for _, rq := range s.roundQuestions {
		if rq.RoundID != roundID || rq.DisplayedAt == nil {
			continue
		}
		rq := rq
		if latest == nil ||
			rq.DisplayedAt.After(*latest.DisplayedAt) ||
			(rq.DisplayedAt.Equal(*latest.DisplayedAt) && rq.QuestionNumber > latest.QuestionNumber) {
			latest = &rq
		}
	}
	return latest, nil
}

func (s *Store) NextUndisplayedQuestion(ctx context.Context, roundID int64) (*domain.RoundQuestion, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var next *domain.RoundQuestion
	for _, rq := range s.roundQuestions {
		if rq.RoundID != roundID || rq.DisplayedAt != nil {
			continue
		}
		rq := rq
		if next == nil || rq.QuestionNumber < next.QuestionNumber {
			next = &rq
		}
	}
	return next, nil
}

func (s *Store) MarkQuestionDisplayed(ctx context.Context, roundQuestionID int64, at time.Time) error {
	return s.markQuestionDisplayed(roundQuestionID, at, nil)
}

func (s *Store) markQuestionDisplayed(roundQuestionID int64, at time.Time, undo *[]func()) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rq, ok := s.roundQuestions[roundQuestionID]
	if !ok {
		return domain.ErrRoundQuestionNotFound
	}
	if rq.DisplayedAt != nil {
		return nil
	}
	prev := rq
	if undo != nil {
		*undo = append(*undo, func() { s.roundQuestions[prev.ID] = prev })
	}
	rq.DisplayedAt = &at
	s.roundQuestions[roundQuestionID] = rq
	return nil
}

func (s *Store) ListPlayers(ctx context.Context, gameID int64) ([]*domain.GamePlayer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	players := make([]*domain.GamePlayer, 0)
	for _, p := range s.players {
		if p.GameID == gameID {
			p := p
			players = append(players, &p)
		}
	}
	sort.Slice(players, func(i, j int) bool { return players[i].JoinOrder < players[j].JoinOrder })
	return players, nil
}

func (s *Store) GetPlayer(ctx context.Context, gameID, userID int64) (*domain.GamePlayer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.players {
		if p.GameID == gameID && p.UserID == userID {
			p := p
			return &p, nil
		}
	}
	return nil, domain.ErrPlayerNotFound
}

func (s *Store) UpdatePlayer(ctx context.Context, player *domain.GamePlayer) error {
	return s.updatePlayer(player, nil)
}

func (s *Store) updatePlayer(player *domain.GamePlayer, undo *[]func()) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev, ok := s.players[player.ID]
	if !ok {
		return domain.ErrPlayerNotFound
	}
	if undo != nil {
		*undo = append(*undo, func() { s.players[prev.ID] = prev })
	}
	s.players[player.ID] = *player
	return nil
}

func (s *Store) UpsertAnswer(ctx context.Context, answer *domain.Answer) error {
	return s.upsertAnswer(answer, nil)
}

func (s *Store) upsertAnswer(answer *domain.Answer, undo *[]func()) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, existing := range s.answers {
		if existing.RoundQuestionID == answer.RoundQuestionID && existing.UserID == answer.UserID {
			prev := existing
			if undo != nil {
				*undo = append(*undo, func() { s.answers[prev.ID] = prev })
			}
			answer.ID = id
			s.answers[id] = *answer
			return nil
		}
	}
	answer.ID = s.allocID()
	s.answers[answer.ID] = *answer
	answerID := answer.ID
	if undo != nil {
		*undo = append(*undo, func() { delete(s.answers, answerID) })
	}
	return nil
}

func (s *Store) QuestionAnswers(ctx context.Context, roundQuestionID int64) ([]*domain.Answer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.filterAnswers(func(a domain.Answer) bool { return a.RoundQuestionID == roundQuestionID }), nil
}

func (s *Store) RoundAnswers(ctx context.Context, roundID int64) ([]*domain.Answer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.filterAnswers(func(a domain.Answer) bool { return a.RoundID == roundID }), nil
}

func (s *Store) GameAnswers(ctx context.Context, gameID int64) ([]*domain.Answer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.filterAnswers(func(a domain.Answer) bool { return a.GameID == gameID }), nil
}

func (s *Store) filterAnswers(match func(domain.Answer) bool) []*domain.Answer {
	answers := make([]*domain.Answer, 0)
	for _, a := range s.answers {
		if match(a) {
			a := a
			answers = append(answers, &a)
		}
	}
	sort.Slice(answers, func(i, j int) bool { return answers[i].ID < answers[j].ID })
	return answers
}

func (s *Store) GetUser(ctx context.Context, id int64) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, domain.ErrPlayerNotFound
	}
	return &u, nil
}

func (s *Store) GetQuestion(ctx context.Context, id int64) (*domain.Question, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	q, ok := s.questions[id]
	if !ok {
		return nil, domain.ErrQuestionNotFound
	}
	return &q, nil
}

func (s *Store) UnusedQuestions(ctx context.Context, gameID int64, themeID *int64, limit int) ([]*domain.Question, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	used := s.usedQuestions[gameID]
	out := make([]*domain.Question, 0, limit)
	ids := make([]int64, 0, len(s.questions))
	for id := range s.questions {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		q := s.questions[id]
		if !q.IsApproved || used[q.ID] {
			continue
		}
		if themeID != nil && q.ThemeID != *themeID {
			continue
		}
		out = append(out, &q)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}
