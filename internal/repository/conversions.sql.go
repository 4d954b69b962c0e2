package repository

import "context"

const createConversion = `
INSERT INTO conversions (id, ip, kind, upload_key, output_key, created_at)
VALUES (?, ?, ?, ?, ?, ?)
`

type CreateConversionParams struct {
	ID        string
	IP        string
	Kind      string
	UploadKey string
	OutputKey string
	CreatedAt int64
}

func (q *Queries) CreateConversion(ctx context.Context, arg CreateConversionParams) error {
	_, err := q.db.ExecContext(ctx, q.rebind(createConversion),
		arg.ID, arg.IP, arg.Kind, arg.UploadKey, arg.OutputKey, arg.CreatedAt)
	return err
}

const listConversionsBefore = `
SELECT id, ip, kind, upload_key, output_key, created_at
FROM conversions
WHERE created_at < ?
ORDER BY created_at
LIMIT ?
`

// ListConversionsBefore returns up to limit records created before the unix time.
func (q *Queries) ListConversionsBefore(ctx context.Context, before int64, limit int) ([]Conversion, error) {
	rows, err := q.db.QueryContext(ctx, q.rebind(listConversionsBefore), before, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []Conversion
	for rows.Next() {
		var c Conversion
		if err := rows.Scan(&c.ID, &c.IP, &c.Kind, &c.UploadKey, &c.OutputKey, &c.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const deleteConversion = `
DELETE FROM conversions WHERE id = ?
`

func (q *Queries) DeleteConversion(ctx context.Context, id string) error {
	_, err := q.db.ExecContext(ctx, q.rebind(deleteConversion), id)
	return err
}
