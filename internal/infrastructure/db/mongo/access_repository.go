package mongo

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/medivex/identity-service/internal/core/domain"
	"github.com/medivex/identity-service/internal/core/ports"
)

const (
	collectionRoles       = "roles"
	collectionPermissions = "permissions"

	idxNameKey = "unique_name_key"
)

// AccessRepository stores roles and permissions in two collections. Names are
// unique on their upper-cased key.
type AccessRepository struct {
	roles *mongo.Collection
	perms *mongo.Collection
	now   func() time.Time
}

var (
	_ ports.RoleRepository       = (*AccessRepository)(nil)
	_ ports.PermissionRepository = (*AccessRepository)(nil)
)

func NewAccessRepository(db *mongo.Database) *AccessRepository {
	return &AccessRepository{
		roles: db.Collection(collectionRoles),
		perms: db.Collection(collectionPermissions),
		now:   time.Now,
	}
}

type roleDoc struct {
	ID            string    `bson:"_id"`
	Name          string    `bson:"name"`
	NameKey       string    `bson:"name_key"`
	Description   string    `bson:"description,omitempty"`
	Type          string    `bson:"role_type"`
	IsSystemRole  bool      `bson:"is_system_role"`
	IsActive      bool      `bson:"is_active"`
	PermissionIDs []string  `bson:"permission_ids"`
	CreatedAt     time.Time `bson:"created_at"`
	UpdatedAt     time.Time `bson:"updated_at"`
}

func (d *roleDoc) toDomain() *domain.Role {
	return &domain.Role{
		ID:            d.ID,
		Name:          d.Name,
		Description:   d.Description,
		Type:          domain.RoleType(d.Type),
		IsSystemRole:  d.IsSystemRole,
		IsActive:      d.IsActive,
		PermissionIDs: d.PermissionIDs,
		CreatedAt:     d.CreatedAt.UTC(),
		UpdatedAt:     d.UpdatedAt.UTC(),
	}
}

type permissionDoc struct {
	ID          string    `bson:"_id"`
	Name        string    `bson:"name"`
	NameKey     string    `bson:"name_key"`
	Description string    `bson:"description,omitempty"`
	Resource    string    `bson:"resource"`
	Action      string    `bson:"action"`
	IsActive    bool      `bson:"is_active"`
	CreatedAt   time.Time `bson:"created_at"`
	UpdatedAt   time.Time `bson:"updated_at"`
}

func (d *permissionDoc) toDomain() *domain.Permission {
	return &domain.Permission{
		ID:          d.ID,
		Name:        d.Name,
		Description: d.Description,
		Resource:    d.Resource,
		Action:      d.Action,
		IsActive:    d.IsActive,
		CreatedAt:   d.CreatedAt.UTC(),
		UpdatedAt:   d.UpdatedAt.UTC(),
	}
}

func nameWriteError(err error, op string) error {
	if _, ok := duplicateIndex(err, idxNameKey); ok {
		return domain.ErrDuplicateName
	}
	return fmt.Errorf("%s: %w", op, err)
}

func (r *AccessRepository) CreateRole(ctx context.Context, role *domain.Role) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	perms := role.PermissionIDs
	if perms == nil {
		perms = []string{}
	}
	doc := roleDoc{
		ID:            role.ID,
		Name:          role.Name,
		NameKey:       domain.NameKey(role.Name),
		Description:   role.Description,
		Type:          string(role.Type),
		IsSystemRole:  role.IsSystemRole,
		IsActive:      role.IsActive,
		PermissionIDs: perms,
		CreatedAt:     role.CreatedAt,
		UpdatedAt:     role.UpdatedAt,
	}
	if _, err := r.roles.InsertOne(ctx, doc); err != nil {
		return nameWriteError(err, "insert role")
	}
	return nil
}

func (r *AccessRepository) UpdateRole(ctx context.Context, id string, upd domain.RoleUpdate) (*domain.Role, error) {
	set := bson.M{"updated_at": r.now().UTC()}
	if upd.Name != nil {
		set["name"] = *upd.Name
		set["name_key"] = domain.NameKey(*upd.Name)
	}
	if upd.Description != nil {
		set["description"] = *upd.Description
	}
	if upd.IsActive != nil {
		set["is_active"] = *upd.IsActive
	}

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var doc roleDoc
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	if err := r.roles.FindOneAndUpdate(ctx, bson.M{"_id": id}, bson.M{"$set": set}, opts).Decode(&doc); err != nil {
		if isNoDocuments(err) {
			return nil, domain.ErrRoleNotFound
		}
		return nil, nameWriteError(err, "update role")
	}
	return doc.toDomain(), nil
}

func (r *AccessRepository) findRole(ctx context.Context, filter bson.M) (*domain.Role, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var doc roleDoc
	if err := r.roles.FindOne(ctx, filter).Decode(&doc); err != nil {
		if isNoDocuments(err) {
			return nil, domain.ErrRoleNotFound
		}
		return nil, fmt.Errorf("find role: %w", err)
	}
	return doc.toDomain(), nil
}

func (r *AccessRepository) FindRoleByID(ctx context.Context, id string) (*domain.Role, error) {
	return r.findRole(ctx, bson.M{"_id": id})
}

func (r *AccessRepository) FindRoleByName(ctx context.Context, name string) (*domain.Role, error) {
	return r.findRole(ctx, bson.M{"name_key": domain.NameKey(name)})
}

func (r *AccessRepository) findRoles(ctx context.Context, filter bson.M) ([]*domain.Role, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	cur, err := r.roles.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "name_key", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("find roles: %w", err)
	}
	defer cur.Close(ctx)

	var docs []roleDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode roles: %w", err)
	}
	out := make([]*domain.Role, 0, len(docs))
	for i := range docs {
		out = append(out, docs[i].toDomain())
	}
	return out, nil
}

func (r *AccessRepository) FindRolesByIDs(ctx context.Context, ids []string) ([]*domain.Role, error) {
	if len(ids) == 0 {
		return []*domain.Role{}, nil
	}
	return r.findRoles(ctx, bson.M{"_id": bson.M{"$in": ids}})
}

func (r *AccessRepository) FindRolesByNames(ctx context.Context, names []string) ([]*domain.Role, error) {
	if len(names) == 0 {
		return []*domain.Role{}, nil
	}
	keys := make([]string, 0, len(names))
	for _, n := range names {
		keys = append(keys, domain.NameKey(n))
	}
	return r.findRoles(ctx, bson.M{"name_key": bson.M{"$in": keys}})
}

func (r *AccessRepository) ListRoles(ctx context.Context, filter ports.ListRolesFilter) ([]*domain.Role, error) {
	query := bson.M{}
	if filter.ActiveOnly {
		query["is_active"] = true
	}
	if filter.Search != "" {
		query["name"] = bson.M{"$regex": regexp.QuoteMeta(filter.Search), "$options": "i"}
	}
	return r.findRoles(ctx, query)
}

func (r *AccessRepository) rolePermissions(ctx context.Context, roleID string, op string, permissionID string) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	update := bson.M{
		op:     bson.M{"permission_ids": permissionID},
		"$set": bson.M{"updated_at": r.now().UTC()},
	}
	res, err := r.roles.UpdateOne(ctx, bson.M{"_id": roleID}, update)
	if err != nil {
		return fmt.Errorf("update role permissions: %w", err)
	}
	if res.MatchedCount == 0 {
		return domain.ErrRoleNotFound
	}
	return nil
}

func (r *AccessRepository) AddRolePermission(ctx context.Context, roleID, permissionID string) error {
	return r.rolePermissions(ctx, roleID, "$addToSet", permissionID)
}

func (r *AccessRepository) RemoveRolePermission(ctx context.Context, roleID, permissionID string) error {
	return r.rolePermissions(ctx, roleID, "$pull", permissionID)
}

func (r *AccessRepository) CreatePermission(ctx context.Context, perm *domain.Permission) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	doc := permissionDoc{
		ID:          perm.ID,
		Name:        perm.Name,
		NameKey:     domain.NameKey(perm.Name),
		Description: perm.Description,
		Resource:    perm.Resource,
		Action:      perm.Action,
		IsActive:    perm.IsActive,
		CreatedAt:   perm.CreatedAt,
		UpdatedAt:   perm.UpdatedAt,
	}
	if _, err := r.perms.InsertOne(ctx, doc); err != nil {
		return nameWriteError(err, "insert permission")
	}
	return nil
}

func (r *AccessRepository) UpdatePermission(ctx context.Context, id string, upd domain.PermissionUpdate) (*domain.Permission, error) {
	set := bson.M{"updated_at": r.now().UTC()}
	if upd.Name != nil {
		set["name"] = *upd.Name
		set["name_key"] = domain.NameKey(*upd.Name)
	}
	if upd.Description != nil {
		set["description"] = *upd.Description
	}
	if upd.Resource != nil {
		set["resource"] = *upd.Resource
	}
	if upd.Action != nil {
		set["action"] = *upd.Action
	}
	if upd.IsActive != nil {
		set["is_active"] = *upd.IsActive
	}

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var doc permissionDoc
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	if err := r.perms.FindOneAndUpdate(ctx, bson.M{"_id": id}, bson.M{"$set": set}, opts).Decode(&doc); err != nil {
		if isNoDocuments(err) {
			return nil, domain.ErrPermissionNotFound
		}
		return nil, nameWriteError(err, "update permission")
	}
	return doc.toDomain(), nil
}

func (r *AccessRepository) findPermission(ctx context.Context, filter bson.M) (*domain.Permission, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var doc permissionDoc
	if err := r.perms.FindOne(ctx, filter).Decode(&doc); err != nil {
		if isNoDocuments(err) {
			return nil, domain.ErrPermissionNotFound
		}
		return nil, fmt.Errorf("find permission: %w", err)
	}
	return doc.toDomain(), nil
}

func (r *AccessRepository) FindPermissionByID(ctx context.Context, id string) (*domain.Permission, error) {
	return r.findPermission(ctx, bson.M{"_id": id})
}

func (r *AccessRepository) FindPermissionByName(ctx context.Context, name string) (*domain.Permission, error) {
	return r.findPermission(ctx, bson.M{"name_key": domain.NameKey(name)})
}

func (r *AccessRepository) findPermissions(ctx context.Context, filter bson.M) ([]*domain.Permission, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	cur, err := r.perms.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "name_key", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("find permissions: %w", err)
	}
	defer cur.Close(ctx)

	var docs []permissionDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode permissions: %w", err)
	}
	out := make([]*domain.Permission, 0, len(docs))
	for i := range docs {
		out = append(out, docs[i].toDomain())
	}
	return out, nil
}

func (r *AccessRepository) FindPermissionsByIDs(ctx context.Context, ids []string) ([]*domain.Permission, error) {
	if len(ids) == 0 {
		return []*domain.Permission{}, nil
	}
	return r.findPermissions(ctx, bson.M{"_id": bson.M{"$in": ids}})
}

func (r *AccessRepository) ListPermissions(ctx context.Context, activeOnly bool) ([]*domain.Permission, error) {
	query := bson.M{}
	if activeOnly {
		query["is_active"] = true
	}
	return r.findPermissions(ctx, query)
}

// EnsureIndexes creates the unique name indexes on both collections.
func (r *AccessRepository) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, indexTimeout)
	defer cancel()

	unique := mongo.IndexModel{
		Keys:    bson.D{{Key: "name_key", Value: 1}},
		Options: options.Index().SetName(idxNameKey).SetUnique(true),
	}
	if _, err := r.roles.Indexes().CreateOne(ctx, unique); err != nil {
		return fmt.Errorf("role indexes: %w", err)
	}
	if _, err := r.perms.Indexes().CreateOne(ctx, unique); err != nil {
		return fmt.Errorf("permission indexes: %w", err)
	}
	return nil
}
