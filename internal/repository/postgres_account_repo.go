package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/hitoshi/homeboard/internal/model"
)

// uniqueViolationCode はPostgreSQLのunique_violationエラーコード。
const uniqueViolationCode = "23505"

// PostgresAccountRepo はPostgreSQLを使用したアカウントリポジトリ。
type PostgresAccountRepo struct {
	db *sql.DB
}

// NewPostgresAccountRepo はPostgresAccountRepoを生成する。
func NewPostgresAccountRepo(db *sql.DB) *PostgresAccountRepo {
	return &PostgresAccountRepo{db: db}
}

// providerColumn はプロバイダーに対応するaccountsテーブルの列名を返す。
// 列名の組み立てに使用するため、既知のプロバイダー以外はエラーとする。
func providerColumn(p model.Provider) (string, error) {
	switch p {
	case model.ProviderYandex:
		return "yandex_id", nil
	case model.ProviderGoogle:
		return "google_id", nil
	default:
		return "", fmt.Errorf("unsupported provider: %s", p)
	}
}

const accountColumns = `id, COALESCE(yandex_id, ''), COALESCE(google_id, ''), COALESCE(email, ''), name, created_at, updated_at`

func scanAccount(row *sql.Row) (*model.Account, error) {
	account := &model.Account{}
	err := row.Scan(
		&account.ID, &account.YandexID, &account.GoogleID,
		&account.Email, &account.Name, &account.CreatedAt, &account.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan account: %w", err)
	}
	return account, nil
}

// FindByID は指定IDのアカウントを取得する。見つからない場合はnilを返す。
func (r *PostgresAccountRepo) FindByID(ctx context.Context, id string) (*model.Account, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE id = $1`,
		id,
	)
	return scanAccount(row)
}

// FindByProviderID は指定プロバイダーの外部IDでアカウントを検索する。
// 見つからない場合はnilを返す。
func (r *PostgresAccountRepo) FindByProviderID(ctx context.Context, provider model.Provider, externalID string) (*model.Account, error) {
	column, err := providerColumn(provider)
	if err != nil {
		return nil, err
	}

	row := r.db.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE `+column+` = $1`,
		externalID,
	)
	return scanAccount(row)
}

// FindByEmail はemailでアカウントを検索する。見つからない場合はnilを返す。
// email列のNULL（未設定）は決して一致しないため、空文字列は即nilを返す。
func (r *PostgresAccountRepo) FindByEmail(ctx context.Context, email string) (*model.Account, error) {
	if email == "" {
		return nil, nil
	}

	row := r.db.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE email = $1`,
		email,
	)
	return scanAccount(row)
}

// Create はアカウントを作成する。
// 外部IDとemailの空文字列はNULLとして保存し、一意制約の対象外とする。
// 一意制約に違反した場合はErrUniqueViolationを返す。
func (r *PostgresAccountRepo) Create(ctx context.Context, account *model.Account) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO accounts (id, yandex_id, google_id, email, name, created_at, updated_at)
		 VALUES ($1, NULLIF($2, ''), NULLIF($3, ''), NULLIF($4, ''), $5, $6, $7)`,
		account.ID, account.YandexID, account.GoogleID, account.Email,
		account.Name, account.CreatedAt, account.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %v", ErrUniqueViolation, err)
		}
		return fmt.Errorf("failed to insert account: %w", err)
	}
	return nil
}

// LinkProvider は既存アカウントに指定プロバイダーの外部IDを付与する。
// 表示名が未設定の場合のみnameで埋める。
// 一意制約に違反した場合はErrUniqueViolationを返す。
func (r *PostgresAccountRepo) LinkProvider(ctx context.Context, accountID string, provider model.Provider, externalID, name string) error {
	column, err := providerColumn(provider)
	if err != nil {
		return err
	}

	result, err := r.db.ExecContext(ctx,
		`UPDATE accounts
		 SET `+column+` = NULLIF($2, ''),
		     name = CASE WHEN name = '' THEN $3 ELSE name END,
		     updated_at = now()
		 WHERE id = $1`,
		accountID, externalID, name,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %v", ErrUniqueViolation, err)
		}
		return fmt.Errorf("failed to link provider: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("account not found: %s", accountID)
	}
	return nil
}

// isUniqueViolation はlib/pqのunique_violationエラーかどうかを判定する。
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolationCode
}

// compile-time interface check
var _ AccountRepository = (*PostgresAccountRepo)(nil)
