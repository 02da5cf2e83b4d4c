package pgx

import (
	"context"
	"time"

	"github.com/finkg/backend/pkg/common"
	"github.com/finkg/backend/pkg/store"

	pgxv5 "github.com/jackc/pgx/v5"
)

const selectAnnouncementsByIDsSQL = `
SELECT id::text, COALESCE(title, ''), COALESCE(content, ''), date, COALESCE(stock_num, '')
FROM announce_data
WHERE id::text = ANY($1::text[])
ORDER BY date DESC NULLS LAST, id DESC
`

// The data list is a JSON array of announcement IDs; anything else counts as
// an empty list.
const selectProjectAnnouncementsSQL = `
SELECT a.id::text, COALESCE(a.title, ''), COALESCE(a.content, ''), a.date, COALESCE(a.stock_num, '')
FROM graph_project p
JOIN announce_data a
  ON a.id::text IN (
    SELECT jsonb_array_elements_text(
      CASE WHEN jsonb_typeof(p.data_list) = 'array' THEN p.data_list ELSE '[]'::jsonb END
    )
  )
WHERE p.id::text = $1
ORDER BY a.date DESC NULLS LAST, a.id DESC
LIMIT $2
`

func (s *GraphDBStorage) GetAnnouncementsByIDs(ctx context.Context, ids []string) ([]common.Announcement, error) {
	ids = store.DedupeStrings(ids)
	if len(ids) == 0 {
		return []common.Announcement{}, nil
	}
	rows, err := s.conn.Query(ctx, selectAnnouncementsByIDsSQL, ids)
	if err != nil {
		return nil, err
	}
	return scanAnnouncements(rows)
}

func (s *GraphDBStorage) GetProjectAnnouncements(ctx context.Context, projectID string, limit int) ([]common.Announcement, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.conn.Query(ctx, selectProjectAnnouncementsSQL, projectID, limit)
	if err != nil {
		return nil, err
	}
	return scanAnnouncements(rows)
}

func scanAnnouncements(rows pgxv5.Rows) ([]common.Announcement, error) {
	defer rows.Close()

	out := make([]common.Announcement, 0)
	for rows.Next() {
		var (
			a    common.Announcement
			date *time.Time
		)
		if err := rows.Scan(&a.ID, &a.Title, &a.Content, &date, &a.StockNum); err != nil {
			return nil, err
		}
		if date != nil {
			a.Date = *date
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
