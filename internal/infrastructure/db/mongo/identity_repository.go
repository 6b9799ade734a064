package mongo

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/medivex/identity-service/internal/core/domain"
	"github.com/medivex/identity-service/internal/core/ports"
)

const (
	collectionIdentities = "identities"

	idxLiveUsername = "live_username"
	idxLiveEmail    = "live_email"
)

// IdentityRepository stores identities in MongoDB. Username and email
// uniqueness among live identities is enforced by partial unique indexes.
type IdentityRepository struct {
	col *mongo.Collection
	now func() time.Time
}

var _ ports.IdentityRepository = (*IdentityRepository)(nil)

func NewIdentityRepository(db *mongo.Database) *IdentityRepository {
	return &IdentityRepository{col: db.Collection(collectionIdentities), now: time.Now}
}

type identityDoc struct {
	ID                     string     `bson:"_id"`
	Username               string     `bson:"username"`
	Email                  string     `bson:"email"`
	EmailKey               string     `bson:"email_key"`
	PasswordHash           string     `bson:"password_hash"`
	FirstName              string     `bson:"first_name,omitempty"`
	LastName               string     `bson:"last_name,omitempty"`
	Phone                  string     `bson:"phone,omitempty"`
	Status                 string     `bson:"account_status"`
	EmailVerified          bool       `bson:"email_verified"`
	EmailVerificationToken string     `bson:"email_verification_token,omitempty"`
	PasswordResetToken     string     `bson:"password_reset_token,omitempty"`
	PasswordResetExpiresAt *time.Time `bson:"password_reset_expires_at,omitempty"`
	FailedLoginAttempts    int        `bson:"failed_login_attempts"`
	AccountLockedUntil     *time.Time `bson:"account_locked_until,omitempty"`
	LastLoginAt            *time.Time `bson:"last_login_at,omitempty"`
	RoleIDs                []string   `bson:"role_ids"`
	Deleted                bool       `bson:"deleted"`
	DeletedAt              *time.Time `bson:"deleted_at,omitempty"`
	CreatedAt              time.Time  `bson:"created_at"`
	UpdatedAt              time.Time  `bson:"updated_at"`
}

func toIdentityDoc(i *domain.Identity) identityDoc {
	roles := i.RoleIDs
	if roles == nil {
		roles = []string{}
	}
	return identityDoc{
		ID:                     i.ID,
		Username:               i.Username,
		Email:                  i.Email,
		EmailKey:               strings.ToLower(i.Email),
		PasswordHash:           i.PasswordHash,
		FirstName:              i.FirstName,
		LastName:               i.LastName,
		Phone:                  i.Phone,
		Status:                 string(i.Status),
		EmailVerified:          i.EmailVerified,
		EmailVerificationToken: i.EmailVerificationToken,
		PasswordResetToken:     i.PasswordResetToken,
		PasswordResetExpiresAt: i.PasswordResetExpiresAt,
		FailedLoginAttempts:    i.FailedLoginAttempts,
		AccountLockedUntil:     i.AccountLockedUntil,
		LastLoginAt:            i.LastLoginAt,
		RoleIDs:                roles,
		Deleted:                i.DeletedAt != nil,
		DeletedAt:              i.DeletedAt,
		CreatedAt:              i.CreatedAt,
		UpdatedAt:              i.UpdatedAt,
	}
}

func (d *identityDoc) toDomain() *domain.Identity {
	return &domain.Identity{
		ID:                     d.ID,
		Username:               d.Username,
		Email:                  d.Email,
		PasswordHash:           d.PasswordHash,
		FirstName:              d.FirstName,
		LastName:               d.LastName,
		Phone:                  d.Phone,
		Status:                 domain.AccountStatus(d.Status),
		EmailVerified:          d.EmailVerified,
		EmailVerificationToken: d.EmailVerificationToken,
		PasswordResetToken:     d.PasswordResetToken,
		PasswordResetExpiresAt: utcPtr(d.PasswordResetExpiresAt),
		FailedLoginAttempts:    d.FailedLoginAttempts,
		AccountLockedUntil:     utcPtr(d.AccountLockedUntil),
		LastLoginAt:            utcPtr(d.LastLoginAt),
		RoleIDs:                d.RoleIDs,
		DeletedAt:              utcPtr(d.DeletedAt),
		CreatedAt:              d.CreatedAt.UTC(),
		UpdatedAt:              d.UpdatedAt.UTC(),
	}
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}

func (r *IdentityRepository) Create(ctx context.Context, identity *domain.Identity) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	if _, err := r.col.InsertOne(ctx, toIdentityDoc(identity)); err != nil {
		return identityWriteError(err, "insert identity")
	}
	return nil
}

func identityWriteError(err error, op string) error {
	if idx, ok := duplicateIndex(err, idxLiveUsername, idxLiveEmail); ok {
		if idx == idxLiveEmail {
			return domain.ErrDuplicateEmail
		}
		return domain.ErrDuplicateUsername
	}
	return fmt.Errorf("%s: %w", op, err)
}

func (r *IdentityRepository) findOne(ctx context.Context, filter bson.M) (*domain.Identity, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var doc identityDoc
	if err := r.col.FindOne(ctx, filter).Decode(&doc); err != nil {
		if isNoDocuments(err) {
			return nil, domain.ErrIdentityNotFound
		}
		return nil, fmt.Errorf("find identity: %w", err)
	}
	return doc.toDomain(), nil
}

func (r *IdentityRepository) FindByID(ctx context.Context, id string) (*domain.Identity, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

func (r *IdentityRepository) FindByUsername(ctx context.Context, username string) (*domain.Identity, error) {
	return r.findOne(ctx, bson.M{"username": username, "deleted": false})
}

func (r *IdentityRepository) FindByEmail(ctx context.Context, email string) (*domain.Identity, error) {
	return r.findOne(ctx, bson.M{"email_key": strings.ToLower(email), "deleted": false})
}

func (r *IdentityRepository) FindByUsernameOrEmail(ctx context.Context, login string) (*domain.Identity, error) {
	return r.findOne(ctx, bson.M{
		"deleted": false,
		"$or": bson.A{
			bson.M{"username": login},
			bson.M{"email_key": strings.ToLower(login)},
		},
	})
}

func (r *IdentityRepository) List(ctx context.Context, filter ports.ListIdentitiesFilter) ([]*domain.Identity, int64, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	query := bson.M{}
	if !filter.IncludeDeleted {
		query["deleted"] = false
	}
	if filter.Search != "" {
		pattern := bson.M{"$regex": regexp.QuoteMeta(filter.Search), "$options": "i"}
		query["$or"] = bson.A{
			bson.M{"username": pattern},
			bson.M{"email": pattern},
			bson.M{"first_name": pattern},
			bson.M{"last_name": pattern},
		}
	}

	total, err := r.col.CountDocuments(ctx, query)
	if err != nil {
		return nil, 0, fmt.Errorf("count identities: %w", err)
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}}).
		SetSkip(int64((filter.Page - 1) * filter.Limit)).
		SetLimit(int64(filter.Limit))
	cur, err := r.col.Find(ctx, query, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("list identities: %w", err)
	}
	defer cur.Close(ctx)

	var docs []identityDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, 0, fmt.Errorf("decode identities: %w", err)
	}
	out := make([]*domain.Identity, 0, len(docs))
	for i := range docs {
		out = append(out, docs[i].toDomain())
	}
	return out, total, nil
}

// update applies a single atomic update to the identity with the given id.
func (r *IdentityRepository) update(ctx context.Context, id string, set bson.M, extra bson.M) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	upd := bson.M{"$set": withUpdatedAt(set, r.now())}
	for k, v := range extra {
		upd[k] = v
	}
	res, err := r.col.UpdateOne(ctx, bson.M{"_id": id}, upd)
	if err != nil {
		return identityWriteError(err, "update identity")
	}
	if res.MatchedCount == 0 {
		return domain.ErrIdentityNotFound
	}
	return nil
}

func withUpdatedAt(set bson.M, now time.Time) bson.M {
	if set == nil {
		set = bson.M{}
	}
	set["updated_at"] = now.UTC()
	return set
}

func (r *IdentityRepository) UpdateProfile(ctx context.Context, id string, upd domain.ProfileUpdate, verificationToken string) (*domain.Identity, error) {
	set := bson.M{}
	if upd.Email != nil {
		set["email"] = *upd.Email
		set["email_key"] = strings.ToLower(*upd.Email)
		if verificationToken != "" {
			set["email_verified"] = false
			set["email_verification_token"] = verificationToken
		}
	}
	if upd.FirstName != nil {
		set["first_name"] = *upd.FirstName
	}
	if upd.LastName != nil {
		set["last_name"] = *upd.LastName
	}
	if upd.Phone != nil {
		set["phone"] = *upd.Phone
	}

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var doc identityDoc
	err := r.col.FindOneAndUpdate(ctx, bson.M{"_id": id}, bson.M{"$set": withUpdatedAt(set, r.now())}, opts).Decode(&doc)
	if err != nil {
		if isNoDocuments(err) {
			return nil, domain.ErrIdentityNotFound
		}
		return nil, identityWriteError(err, "update profile")
	}
	return doc.toDomain(), nil
}

func (r *IdentityRepository) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	return r.update(ctx, id, bson.M{"password_hash": passwordHash}, nil)
}

// SetStatus changes the account status. A non-nil deletedAt soft-deletes the
// identity; nil restores it, which fails with a duplicate error if a live
// identity has since claimed the username or email.
func (r *IdentityRepository) SetStatus(ctx context.Context, id string, status domain.AccountStatus, deletedAt *time.Time) error {
	set := bson.M{
		"account_status": string(status),
		"deleted":        deletedAt != nil,
	}
	var extra bson.M
	if deletedAt != nil {
		set["deleted_at"] = deletedAt.UTC()
	} else {
		extra = bson.M{"$unset": bson.M{"deleted_at": ""}}
	}
	return r.update(ctx, id, set, extra)
}

func (r *IdentityRepository) AddRole(ctx context.Context, id, roleID string) error {
	return r.update(ctx, id, nil, bson.M{"$addToSet": bson.M{"role_ids": roleID}})
}

func (r *IdentityRepository) RemoveRole(ctx context.Context, id, roleID string) error {
	return r.update(ctx, id, nil, bson.M{"$pull": bson.M{"role_ids": roleID}})
}

func (r *IdentityRepository) ConsumeEmailVerificationToken(ctx context.Context, token string) (*domain.Identity, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	filter := bson.M{"email_verification_token": token, "deleted": false}
	update := bson.M{
		"$set":   bson.M{"email_verified": true, "updated_at": r.now().UTC()},
		"$unset": bson.M{"email_verification_token": ""},
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var doc identityDoc
	if err := r.col.FindOneAndUpdate(ctx, filter, update, opts).Decode(&doc); err != nil {
		if isNoDocuments(err) {
			return nil, domain.ErrIdentityNotFound
		}
		return nil, fmt.Errorf("consume verification token: %w", err)
	}
	return doc.toDomain(), nil
}

func (r *IdentityRepository) SetPasswordResetToken(ctx context.Context, id, token string, expiresAt time.Time) error {
	return r.update(ctx, id, bson.M{
		"password_reset_token":      token,
		"password_reset_expires_at": expiresAt.UTC(),
	}, nil)
}

func (r *IdentityRepository) RedeemPasswordResetToken(ctx context.Context, token, passwordHash string, now time.Time) (*domain.Identity, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	filter := bson.M{
		"password_reset_token":      token,
		"password_reset_expires_at": bson.M{"$gt": now.UTC()},
		"deleted":                   false,
	}
	update := bson.M{
		"$set":   bson.M{"password_hash": passwordHash, "updated_at": r.now().UTC()},
		"$unset": bson.M{"password_reset_token": "", "password_reset_expires_at": ""},
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var doc identityDoc
	if err := r.col.FindOneAndUpdate(ctx, filter, update, opts).Decode(&doc); err != nil {
		if isNoDocuments(err) {
			return nil, domain.ErrIdentityNotFound
		}
		return nil, fmt.Errorf("redeem reset token: %w", err)
	}
	return doc.toDomain(), nil
}

func (r *IdentityRepository) IncrementFailedLogins(ctx context.Context, id string) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	update := bson.M{
		"$inc": bson.M{"failed_login_attempts": 1},
		"$set": bson.M{"updated_at": r.now().UTC()},
	}
	opts := options.FindOneAndUpdate().
		SetReturnDocument(options.After).
		SetProjection(bson.M{"failed_login_attempts": 1})

	var doc struct {
		FailedLoginAttempts int `bson:"failed_login_attempts"`
	}
	if err := r.col.FindOneAndUpdate(ctx, bson.M{"_id": id}, update, opts).Decode(&doc); err != nil {
		if isNoDocuments(err) {
			return 0, domain.ErrIdentityNotFound
		}
		return 0, fmt.Errorf("increment failed logins: %w", err)
	}
	return doc.FailedLoginAttempts, nil
}

func (r *IdentityRepository) LockUntil(ctx context.Context, id string, until time.Time) error {
	return r.update(ctx, id, bson.M{"account_locked_until": until.UTC()}, nil)
}

func (r *IdentityRepository) RecordSuccessfulLogin(ctx context.Context, id string, at time.Time) error {
	return r.update(ctx, id,
		bson.M{"failed_login_attempts": 0, "last_login_at": at.UTC()},
		bson.M{"$unset": bson.M{"account_locked_until": ""}},
	)
}

// EnsureIndexes creates the uniqueness and lookup indexes on the identities
// collection.
func (r *IdentityRepository) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, indexTimeout)
	defer cancel()

	live := bson.M{"deleted": false}
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "username", Value: 1}},
			Options: options.Index().SetName(idxLiveUsername).SetUnique(true).SetPartialFilterExpression(live),
		},
		{
			Keys:    bson.D{{Key: "email_key", Value: 1}},
			Options: options.Index().SetName(idxLiveEmail).SetUnique(true).SetPartialFilterExpression(live),
		},
		{
			Keys:    bson.D{{Key: "email_verification_token", Value: 1}},
			Options: options.Index().SetSparse(true),
		},
		{
			Keys:    bson.D{{Key: "password_reset_token", Value: 1}},
			Options: options.Index().SetSparse(true),
		},
		{Keys: bson.D{{Key: "created_at", Value: 1}}},
	}

	if _, err := r.col.Indexes().CreateMany(ctx, indexes); err != nil {
		return fmt.Errorf("identity indexes: %w", err)
	}
	return nil
}
