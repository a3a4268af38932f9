package memory

import "trivia-game-service/internal/domain"

// FixtureSet is the demo data set used when no database is configured. The
// same records back the `seed` CLI command for fresh Postgres installs.
type FixtureSet struct {
	Theme     domain.Theme
	Users     []domain.User
	Questions []domain.Question
}

// NewFixtureStore returns a store preloaded with the demo question bank and
// a roster of users, enough to run full games without a database.
func NewFixtureStore() *Store {
	s := NewStore()
	SeedFixtures(s)
	return s
}

// SeedFixtures loads the demo data set into an in-memory store.
func SeedFixtures(s *Store) {
	fx := Fixtures()
	themeID := s.AddTheme(fx.Theme)
	for _, u := range fx.Users {
		s.AddUser(u)
	}
	for _, q := range fx.Questions {
		q.ThemeID = themeID
		s.AddQuestion(q)
	}
}

// Fixtures returns the demo records: one mixed theme, ten users (one human,
// nine bots) and a small question bank.
func Fixtures() FixtureSet {
	novice := domain.BotNovice
	amateur := domain.BotAmateur
	expert := domain.BotExpert

	users := []domain.User{
		{Username: "alex", FullName: "Alex", IsBot: false},
	}
	for _, u := range []struct {
		name string
		tier *domain.BotDifficulty
	}{
		{"maria", &novice}, {"dmitry", &novice}, {"anna", &amateur},
		{"ivan", &amateur}, {"sofia", &amateur}, {"maxim", &amateur},
		{"elena", &expert}, {"pavel", &novice}, {"olga", &expert},
	} {
		users = append(users, domain.User{Username: u.name, FullName: u.name, IsBot: true, BotDifficulty: u.tier})
	}

	return FixtureSet{
		Theme:     domain.Theme{Code: "general", Name: "General Knowledge"},
		Users:     users,
		Questions: fixtureQuestions(),
	}
}

func fixtureQuestions() []domain.Question {
	str := func(v string) *string { return &v }
	return []domain.Question{
		{QuestionText: "Which planet is the largest in the Solar System?",
			OptionA: "Earth", OptionB: "Jupiter", OptionC: str("Saturn"), OptionD: str("Mars"),
			CorrectOption: domain.OptionB, Difficulty: "easy", IsApproved: true},
		{QuestionText: "How many continents are there on Earth?",
			OptionA: "5", OptionB: "6", OptionC: str("7"), OptionD: str("8"),
			CorrectOption: domain.OptionC, Difficulty: "easy", IsApproved: true},
		{QuestionText: "What is the longest river in the world?",
			OptionA: "Amazon", OptionB: "Nile", OptionC: str("Yangtze"), OptionD: str("Mississippi"),
			CorrectOption: domain.OptionB, Difficulty: "medium", IsApproved: true},
		{QuestionText: "In which year did humans first land on the Moon?",
			OptionA: "1967", OptionB: "1969", OptionC: str("1971"), OptionD: str("1973"),
			CorrectOption: domain.OptionB, Difficulty: "easy", IsApproved: true},
		{QuestionText: "What is the capital of Australia?",
			OptionA: "Sydney", OptionB: "Melbourne", OptionC: str("Canberra"), OptionD: str("Brisbane"),
			CorrectOption: domain.OptionC, Difficulty: "medium", IsApproved: true},
		{QuestionText: "How many elements are in the periodic table?",
			OptionA: "112", OptionB: "118", OptionC: str("120"), OptionD: str("126"),
			CorrectOption: domain.OptionB, Difficulty: "hard", IsApproved: true},
		{QuestionText: "Which animal is a national symbol of Australia?",
			OptionA: "Kangaroo", OptionB: "Koala", OptionC: str("Emu"), OptionD: str("Platypus"),
			CorrectOption: domain.OptionA, Difficulty: "easy", IsApproved: true},
		{QuestionText: "Which ocean is the largest?",
			OptionA: "Atlantic", OptionB: "Pacific", OptionC: str("Indian"), OptionD: str("Arctic"),
			CorrectOption: domain.OptionB, Difficulty: "easy", IsApproved: true},
		{QuestionText: "What is the chemical symbol for gold?",
			OptionA: "Ag", OptionB: "Au", OptionC: str("Gd"), OptionD: str("Go"),
			CorrectOption: domain.OptionB, Difficulty: "easy", IsApproved: true},
		{QuestionText: "Which country hosted the first modern Olympic Games?",
			OptionA: "France", OptionB: "Greece", OptionC: str("Italy"), OptionD: str("England"),
			CorrectOption: domain.OptionB, Difficulty: "medium", IsApproved: true},
		{QuestionText: "How many strings does a standard violin have?",
			OptionA: "4", OptionB: "5", OptionC: str("6"), OptionD: str("7"),
			CorrectOption: domain.OptionA, Difficulty: "easy", IsApproved: true},
		{QuestionText: "Which gas makes up most of Earth's atmosphere?",
			OptionA: "Oxygen", OptionB: "Nitrogen", OptionC: str("Carbon dioxide"), OptionD: str("Argon"),
			CorrectOption: domain.OptionB, Difficulty: "medium", IsApproved: true},
	}
}
