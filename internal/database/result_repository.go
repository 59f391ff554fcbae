package database

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/progate-hackathon-strawberry-flavor/GITRIS-stage/internal/models"
)

// ResultRepository はゲーム結果関連のデータベース操作を定義するインターフェースです。
type ResultRepository interface {
	// CreateResult は1ゲーム分の成績 (スコア・ライン数・レベル) を保存します
	CreateResult(tx *sql.Tx, userID string, score, lines, level int) (*models.Result, error)

	// GetTopResults はスコアの高い順に最大 limit 件を順位付きで返します
	GetTopResults(limit int) ([]models.ResultResponse, error)

	// GetUserBestScore はユーザーの最高成績を返します。記録がなければ nil です
	GetUserBestScore(userID string) (*models.Result, error)

	// GetUserRanking はユーザーの最高成績とその全体順位を返します。記録がなければ nil です
	GetUserRanking(userID string) (*models.ResultResponse, error)
}

// 同点の場合は先に記録した方を上位とする
const (
	insertResultQuery = `
		INSERT INTO results (user_id, score, lines, level, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`

	topResultsQuery = `
		SELECT id, user_id, score, lines, level, created_at,
			ROW_NUMBER() OVER (ORDER BY score DESC, created_at ASC) AS rank
		FROM results
		ORDER BY score DESC, created_at ASC
		LIMIT $1`

	userBestQuery = `
		SELECT id, user_id, score, lines, level, created_at
		FROM results
		WHERE user_id = $1
		ORDER BY score DESC, created_at ASC
		LIMIT 1`

	userRankQuery = `
		SELECT COUNT(*) + 1
		FROM results
		WHERE score > $1 OR (score = $1 AND created_at < $2)`
)

// queryRower は *sql.DB と *sql.Tx に共通する1行クエリのメソッドです。
type queryRower interface {
	QueryRow(query string, args ...interface{}) *sql.Row
}

type resultRepositoryImpl struct {
	db  *sql.DB
	now func() time.Time
}

// NewResultRepository は db を使う ResultRepository を作成します。
// SessionManager の tetris.ResultRecorder としてもそのまま渡せます。
func NewResultRepository(db *sql.DB) ResultRepository {
	return &resultRepositoryImpl{db: db, now: time.Now}
}

// CreateResult はゲームオーバー時の成績を results テーブルに追加します。
// tx が nil の場合はトランザクションを使わずに実行します。
func (r *resultRepositoryImpl) CreateResult(tx *sql.Tx, userID string, score, lines, level int) (*models.Result, error) {
	var q queryRower = r.db
	if tx != nil {
		q = tx
	}

	result := &models.Result{
		UserID:    userID,
		Score:     score,
		Lines:     lines,
		Level:     level,
		CreatedAt: r.now(),
	}
	err := q.QueryRow(insertResultQuery, userID, score, lines, level, result.CreatedAt).Scan(&result.ID)
	if err != nil {
		return nil, fmt.Errorf("ゲーム結果の保存に失敗しました (user %s): %w", userID, err)
	}
	return result, nil
}

// GetTopResults はランキング上位を返します。記録がなければ空のスライスです。
func (r *resultRepositoryImpl) GetTopResults(limit int) ([]models.ResultResponse, error) {
	rows, err := r.db.Query(topResultsQuery, limit)
	if err != nil {
		return nil, fmt.Errorf("ランキングの取得に失敗しました: %w", err)
	}
	defer rows.Close()

	results := []models.ResultResponse{}
	for rows.Next() {
		var res models.ResultResponse
		if err := rows.Scan(&res.ID, &res.UserID, &res.Score, &res.Lines, &res.Level, &res.CreatedAt, &res.Rank); err != nil {
			return nil, fmt.Errorf("ランキング行の読み込みに失敗しました: %w", err)
		}
		results = append(results, res)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ランキングの読み込み中にエラーが発生しました: %w", err)
	}
	return results, nil
}

func (r *resultRepositoryImpl) GetUserBestScore(userID string) (*models.Result, error) {
	var best models.Result
	err := r.db.QueryRow(userBestQuery, userID).
		Scan(&best.ID, &best.UserID, &best.Score, &best.Lines, &best.Level, &best.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("最高成績の取得に失敗しました (user %s): %w", userID, err)
	}
	return &best, nil
}

func (r *resultRepositoryImpl) GetUserRanking(userID string) (*models.ResultResponse, error) {
	best, err := r.GetUserBestScore(userID)
	if err != nil || best == nil {
		return nil, err
	}

	ranking := &models.ResultResponse{
		ID:        best.ID,
		UserID:    best.UserID,
		Score:     best.Score,
		Lines:     best.Lines,
		Level:     best.Level,
		CreatedAt: best.CreatedAt,
	}
	if err := r.db.QueryRow(userRankQuery, best.Score, best.CreatedAt).Scan(&ranking.Rank); err != nil {
		return nil, fmt.Errorf("順位の計算に失敗しました (user %s): %w", userID, err)
	}
	return ranking, nil
}
