package tetris

// ScoreSink はステージが得点やゲームオーバーを通知する先です。
// 表示や保存は実装側の責務で、ステージは結果を読み返しません。
type ScoreSink interface {
	AddScore(n int)
	AddLines(n int)
	AddLevel(n int)
	ShowGameOver()
	Reset()
}

// Stats はスコア・ライン数・レベルの現在値です。
type Stats struct {
	Score int `json:"score"`
	Lines int `json:"lines"`
	Level int `json:"level"`
}

// StatsProvider は現在の成績を返せる ScoreSink です。
type StatsProvider interface {
	Stats() Stats
}

// Scoreboard は上限付きのカウンターで成績を記録する標準の ScoreSink です。
// 上限に達したカウンターはそれ以上増えません。
type Scoreboard struct {
	scoreCap int
	lineCap  int
	levelCap int

	stats    Stats
	gameOver bool

	// OnGameOver はゲームオーバー時に呼び出されます (nil可)。
	OnGameOver func(Stats)
}

// NewScoreboard は cfg の上限値を使う Scoreboard を作成します。
func NewScoreboard(cfg StageConfig) *Scoreboard {
	s := &Scoreboard{
		scoreCap: cfg.ScoreCap,
		lineCap:  cfg.LineCap,
		levelCap: cfg.LevelCap,
	}
	s.Reset()
	return s
}

func addCapped(v, n, limit int) int {
	v += n
	if limit > 0 && v > limit {
		return limit
	}
	return v
}

// AddScore はスコアを加算します。
func (s *Scoreboard) AddScore(n int) { s.stats.Score = addCapped(s.stats.Score, n, s.scoreCap) }

// AddLines はライン数を加算します。
func (s *Scoreboard) AddLines(n int) { s.stats.Lines = addCapped(s.stats.Lines, n, s.lineCap) }

// AddLevel はレベルを加算します。
func (s *Scoreboard) AddLevel(n int) { s.stats.Level = addCapped(s.stats.Level, n, s.levelCap) }

// ShowGameOver はゲームオーバーを記録し、OnGameOver を呼び出します。
func (s *Scoreboard) ShowGameOver() {
	s.gameOver = true
	if s.OnGameOver != nil {
		s.OnGameOver(s.stats)
	}
}

// Reset はスコア0、ライン0、レベル1に戻します。
func (s *Scoreboard) Reset() {
	s.stats = Stats{Level: 1}
	s.gameOver = false
}

// Stats は現在の成績を返します。
func (s *Scoreboard) Stats() Stats { return s.stats }

// GameOver はゲームオーバーが通知されたかどうかを返します。
func (s *Scoreboard) GameOver() bool { return s.gameOver }

// Stopped はいずれかのカウンターが上限に達しているかを返します。
func (s *Scoreboard) Stopped() bool {
	return (s.scoreCap > 0 && s.stats.Score >= s.scoreCap) ||
		(s.lineCap > 0 && s.stats.Lines >= s.lineCap) ||
		(s.levelCap > 0 && s.stats.Level >= s.levelCap)
}
