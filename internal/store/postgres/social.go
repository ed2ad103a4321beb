package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotaclub/rota/internal/models"
)

func (q *queries) InsertNotification(ctx context.Context, n *models.Notification) error {
	_, err := q.db.Exec(ctx, `
		INSERT INTO notifications (id, user_id, type, title, message, link, read, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, n.ID, n.UserID, n.Type, n.Title, n.Message, n.Link, n.Read, n.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert notification: %w", err)
	}
	return nil
}

func (q *queries) ListNotifications(ctx context.Context, userID uuid.UUID, unreadOnly bool, limit int) ([]models.Notification, error) {
	limit, _ = pageArgs(limit, 0)
	rows, err := q.db.Query(ctx, `
		SELECT id, user_id, type, title, message, link, read, created_at
		FROM notifications
		WHERE user_id = $1 AND (NOT read OR NOT $2)
		ORDER BY created_at DESC
		LIMIT $3
	`, userID, unreadOnly, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query notifications: %w", err)
	}
	defer rows.Close()

	var out []models.Notification
	for rows.Next() {
		var n models.Notification
		if err := rows.Scan(&n.ID, &n.UserID, &n.Type, &n.Title, &n.Message, &n.Link, &n.Read, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan notification: %w", err)
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

func (q *queries) MarkNotificationRead(ctx context.Context, userID, id uuid.UUID) error {
	tag, err := q.db.Exec(ctx, `UPDATE notifications SET read = TRUE WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("failed to mark notification read: %w", err)
	}
	return requireRow(tag)
}

const postColumns = `id, author_id, content, image_url, medal_id, confraternity_id, project_id,
	validation_status, deleted, created_at, updated_at`

func scanPost(row interface{ Scan(...any) error }) (*models.Post, error) {
	var p models.Post
	err := row.Scan(&p.ID, &p.AuthorID, &p.Content, &p.ImageURL, &p.MedalID, &p.ConfraternityID, &p.ProjectID,
		&p.ValidationStatus, &p.Deleted, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (q *queries) InsertPost(ctx context.Context, p *models.Post) error {
	_, err := q.db.Exec(ctx, `
		INSERT INTO posts (id, author_id, content, image_url, medal_id, confraternity_id, project_id,
		                   validation_status, deleted, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, p.ID, p.AuthorID, p.Content, p.ImageURL, p.MedalID, p.ConfraternityID, p.ProjectID,
		p.ValidationStatus, p.Deleted, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert post: %w", err)
	}
	return nil
}

func (q *queries) GetPost(ctx context.Context, id uuid.UUID) (*models.Post, error) {
	p, err := scanPost(q.db.QueryRow(ctx, `SELECT `+postColumns+` FROM posts WHERE id = $1`, id))
	if err != nil {
		return nil, notFound(err)
	}
	return p, nil
}

func (q *queries) GetPostForUpdate(ctx context.Context, id uuid.UUID) (*models.Post, error) {
	p, err := scanPost(q.db.QueryRow(ctx, `SELECT `+postColumns+` FROM posts WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		return nil, notFound(err)
	}
	return p, nil
}

func (q *queries) ClaimPostReward(ctx context.Context, r *models.PostReward) (bool, error) {
	tag, err := q.db.Exec(ctx, `
		INSERT INTO post_rewards (profile_id, link_key, post_id, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (profile_id, link_key) DO NOTHING
	`, r.ProfileID, r.LinkKey, r.PostID, r.CreatedAt)
	if err != nil {
		return false, fmt.Errorf("failed to claim post reward: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (q *queries) UpdatePost(ctx context.Context, p *models.Post) error {
	tag, err := q.db.Exec(ctx, `
		UPDATE posts SET content = $2, image_url = $3, validation_status = $4, deleted = $5, updated_at = $6
		WHERE id = $1
	`, p.ID, p.Content, p.ImageURL, p.ValidationStatus, p.Deleted, p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to update post: %w", err)
	}
	return requireRow(tag)
}

// ListPosts never returns deleted posts. Without a status filter rejected posts are hidden too.
func (q *queries) ListPosts(ctx context.Context, f models.PostFilter) ([]models.Post, int, error) {
	limit, offset := pageArgs(f.Limit, f.Offset)

	conds := []string{"NOT deleted"}
	var args []any
	if f.AuthorID != nil {
		args = append(args, *f.AuthorID)
		conds = append(conds, fmt.Sprintf("author_id = $%d", len(args)))
	}
	if f.ValidationStatus != "" {
		args = append(args, f.ValidationStatus)
		conds = append(conds, fmt.Sprintf("validation_status = $%d", len(args)))
	} else {
		conds = append(conds, "validation_status <> 'rejected'")
	}
	where := strings.Join(conds, " AND ")

	var total int
	if err := q.db.QueryRow(ctx, `SELECT COUNT(*) FROM posts WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count posts: %w", err)
	}

	args = append(args, limit, offset)
	rows, err := q.db.Query(ctx, `
		SELECT `+postColumns+` FROM posts
		WHERE `+where+`
		ORDER BY created_at DESC
		LIMIT $`+fmt.Sprint(len(args)-1)+` OFFSET $`+fmt.Sprint(len(args)), args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query posts: %w", err)
	}
	defer rows.Close()

	var out []models.Post
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan post: %w", err)
		}
		out = append(out, *p)
	}
	return out, total, rows.Err()
}

const projectColumns = `id, owner_id, title, description, budget, status, provider_id, created_at, updated_at`

func (q *queries) InsertProject(ctx context.Context, p *models.Project) error {
	_, err := q.db.Exec(ctx, `
		INSERT INTO projects (id, owner_id, title, description, budget, status, provider_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, p.ID, p.OwnerID, p.Title, p.Description, p.Budget, p.Status, p.ProviderID, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert project: %w", err)
	}
	return nil
}

func scanProject(row interface{ Scan(...any) error }) (*models.Project, error) {
	var p models.Project
	err := row.Scan(&p.ID, &p.OwnerID, &p.Title, &p.Description, &p.Budget, &p.Status, &p.ProviderID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (q *queries) GetProject(ctx context.Context, id uuid.UUID) (*models.Project, error) {
	p, err := scanProject(q.db.QueryRow(ctx, `SELECT `+projectColumns+` FROM projects WHERE id = $1`, id))
	if err != nil {
		return nil, notFound(err)
	}
	return p, nil
}

func (q *queries) GetProjectForUpdate(ctx context.Context, id uuid.UUID) (*models.Project, error) {
	p, err := scanProject(q.db.QueryRow(ctx, `SELECT `+projectColumns+` FROM projects WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		return nil, notFound(err)
	}
	return p, nil
}

func (q *queries) UpdateProject(ctx context.Context, p *models.Project) error {
	tag, err := q.db.Exec(ctx, `
		UPDATE projects SET title = $2, description = $3, budget = $4, status = $5, provider_id = $6, updated_at = $7
		WHERE id = $1
	`, p.ID, p.Title, p.Description, p.Budget, p.Status, p.ProviderID, p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to update project: %w", err)
	}
	return requireRow(tag)
}

const proposalColumns = `id, project_id, provider_id, amount, message, status, created_at, responded_at`

func scanProposal(row interface{ Scan(...any) error }) (*models.Proposal, error) {
	var p models.Proposal
	if err := row.Scan(&p.ID, &p.ProjectID, &p.ProviderID, &p.Amount, &p.Message, &p.Status, &p.CreatedAt, &p.RespondedAt); err != nil {
		return nil, err
	}
	return &p, nil
}

func (q *queries) InsertProposal(ctx context.Context, p *models.Proposal) error {
	_, err := q.db.Exec(ctx, `
		INSERT INTO project_proposals (id, project_id, provider_id, amount, message, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, p.ID, p.ProjectID, p.ProviderID, p.Amount, p.Message, p.Status, p.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert proposal: %w", err)
	}
	return nil
}

func (q *queries) GetProposal(ctx context.Context, id uuid.UUID) (*models.Proposal, error) {
	p, err := scanProposal(q.db.QueryRow(ctx, `SELECT `+proposalColumns+` FROM project_proposals WHERE id = $1`, id))
	if err != nil {
		return nil, notFound(err)
	}
	return p, nil
}

func (q *queries) GetProposalForUpdate(ctx context.Context, id uuid.UUID) (*models.Proposal, error) {
	p, err := scanProposal(q.db.QueryRow(ctx, `SELECT `+proposalColumns+` FROM project_proposals WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		return nil, notFound(err)
	}
	return p, nil
}

func (q *queries) UpdateProposal(ctx context.Context, p *models.Proposal) error {
	tag, err := q.db.Exec(ctx, `
		UPDATE project_proposals SET status = $2, responded_at = $3 WHERE id = $1
	`, p.ID, p.Status, p.RespondedAt)
	if err != nil {
		return fmt.Errorf("failed to update proposal: %w", err)
	}
	return requireRow(tag)
}

func (q *queries) ListProposals(ctx context.Context, projectID uuid.UUID) ([]models.Proposal, error) {
	rows, err := q.db.Query(ctx, `
		SELECT `+proposalColumns+` FROM project_proposals
		WHERE project_id = $1 ORDER BY created_at ASC
	`, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to query proposals: %w", err)
	}
	defer rows.Close()

	var out []models.Proposal
	for rows.Next() {
		p, err := scanProposal(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan proposal: %w", err)
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

func (q *queries) HasPendingProposal(ctx context.Context, projectID, providerID uuid.UUID) (bool, error) {
	var exists bool
	err := q.db.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM project_proposals WHERE project_id = $1 AND provider_id = $2 AND status = 'pending')
	`, projectID, providerID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check pending proposal: %w", err)
	}
	return exists, nil
}

func (q *queries) RejectPendingProposals(ctx context.Context, projectID, exceptID uuid.UUID, at time.Time) (int64, error) {
	tag, err := q.db.Exec(ctx, `
		UPDATE project_proposals SET status = 'rejected', responded_at = $3
		WHERE project_id = $1 AND id <> $2 AND status = 'pending'
	`, projectID, exceptID, at)
	if err != nil {
		return 0, fmt.Errorf("failed to reject proposals: %w", err)
	}
	return tag.RowsAffected(), nil
}

const confraternityColumns = `id, host_id, guest_id, scheduled_for, location, status, created_at, completed_at`

func (q *queries) InsertConfraternity(ctx context.Context, c *models.Confraternity) error {
	_, err := q.db.Exec(ctx, `
		INSERT INTO confraternities (id, host_id, guest_id, scheduled_for, location, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, c.ID, c.HostID, c.GuestID, c.ScheduledFor, c.Location, c.Status, c.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert confraternity: %w", err)
	}
	return nil
}

func scanConfraternity(row interface{ Scan(...any) error }) (*models.Confraternity, error) {
	var c models.Confraternity
	err := row.Scan(&c.ID, &c.HostID, &c.GuestID, &c.ScheduledFor, &c.Location, &c.Status, &c.CreatedAt, &c.CompletedAt)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (q *queries) GetConfraternity(ctx context.Context, id uuid.UUID) (*models.Confraternity, error) {
	c, err := scanConfraternity(q.db.QueryRow(ctx, `SELECT `+confraternityColumns+` FROM confraternities WHERE id = $1`, id))
	if err != nil {
		return nil, notFound(err)
	}
	return c, nil
}

// GetConfraternityForUpdate locks the meetup so it is confirmed or cancelled once
func (q *queries) GetConfraternityForUpdate(ctx context.Context, id uuid.UUID) (*models.Confraternity, error) {
	c, err := scanConfraternity(q.db.QueryRow(ctx, `SELECT `+confraternityColumns+` FROM confraternities WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		return nil, notFound(err)
	}
	return c, nil
}

func (q *queries) UpdateConfraternity(ctx context.Context, c *models.Confraternity) error {
	tag, err := q.db.Exec(ctx, `
		UPDATE confraternities SET scheduled_for = $2, location = $3, status = $4, completed_at = $5 WHERE id = $1
	`, c.ID, c.ScheduledFor, c.Location, c.Status, c.CompletedAt)
	if err != nil {
		return fmt.Errorf("failed to update confraternity: %w", err)
	}
	return requireRow(tag)
}
