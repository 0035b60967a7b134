package database

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"go-pos-engine/internal/apperr"
	"go-pos-engine/internal/models"
	"go-pos-engine/internal/store"
)

// Repository implements store.Store on gorm. Each method issues a single
// statement; no method opens a transaction.
type Repository struct {
	DB *gorm.DB
}

var _ store.Store = (*Repository)(nil)

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{DB: db}
}

func notFound(err error, what string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return errors.Wrap(apperr.ErrNotFound, what)
	}
	return errors.Wrapf(err, "load %s", what)
}

// --- products ---

func (r *Repository) CreateProduct(ctx context.Context, p *models.Product) error {
	return errors.Wrap(r.DB.WithContext(ctx).Create(p).Error, "create product")
}

func (r *Repository) GetProduct(ctx context.Context, id uint) (*models.Product, error) {
	var p models.Product
	if err := r.DB.WithContext(ctx).First(&p, id).Error; err != nil {
		return nil, notFound(err, "product")
	}
	return &p, nil
}

func (r *Repository) ListProducts(ctx context.Context) ([]models.Product, error) {
	var products []models.Product
	if err := r.DB.WithContext(ctx).Order("id asc").Find(&products).Error; err != nil {
		return nil, errors.Wrap(err, "list products")
	}
	return products, nil
}

func (r *Repository) UpdateProduct(ctx context.Context, id uint, patch store.ProductPatch) (*models.Product, error) {
	// We use a map so we only update what was sent (partial update)
	updates := map[string]interface{}{}
	if patch.Name != nil {
		updates["name"] = *patch.Name
	}
	if patch.Category != nil {
		updates["category"] = *patch.Category
	}
	if patch.Price != nil {
		updates["price"] = *patch.Price
	}
	if patch.MinimumStock != nil {
		updates["minimum_stock"] = *patch.MinimumStock
	}
	if patch.ImageURL != nil {
		updates["image_url"] = *patch.ImageURL
	}
	if len(updates) > 0 {
		res := r.DB.WithContext(ctx).Model(&models.Product{}).Where("id = ?", id).Updates(updates)
		if res.Error != nil {
			return nil, errors.Wrap(res.Error, "update product")
		}
		if res.RowsAffected == 0 {
			return nil, errors.Wrap(apperr.ErrNotFound, "product")
		}
	}
	return r.GetProduct(ctx, id)
}

// DeleteProduct removes the product and its promotion links. Sales are kept:
// they carry their own snapshots.
func (r *Repository) DeleteProduct(ctx context.Context, id uint) error {
	res := r.DB.WithContext(ctx).Delete(&models.Product{}, id)
	if res.Error != nil {
		return errors.Wrap(res.Error, "delete product")
	}
	if res.RowsAffected == 0 {
		return errors.Wrap(apperr.ErrNotFound, "product")
	}
	if err := r.DB.WithContext(ctx).Where("product_id = ?", id).Delete(&models.ProductPromotion{}).Error; err != nil {
		return errors.Wrap(err, "delete product promotion links")
	}
	return nil
}

func (r *Repository) CompareAndSetStock(ctx context.Context, id uint, expected, next int) (bool, error) {
	res := r.DB.WithContext(ctx).
		Model(&models.Product{}).
		Where("id = ? AND stock_quantity = ?", id, expected).
		Updates(map[string]interface{}{"stock_quantity": next, "updated_at": time.Now().UTC()})
	if res.Error != nil {
		return false, errors.Wrap(res.Error, "compare-and-set stock")
	}
	return res.RowsAffected == 1, nil
}

// --- promotions ---

func (r *Repository) CreatePromotion(ctx context.Context, p *models.Promotion) error {
	return errors.Wrap(r.DB.WithContext(ctx).Create(p).Error, "create promotion")
}

func (r *Repository) GetPromotion(ctx context.Context, id uint) (*models.Promotion, error) {
	var p models.Promotion
	if err := r.DB.WithContext(ctx).First(&p, id).Error; err != nil {
		return nil, notFound(err, "promotion")
	}
	return &p, nil
}

func (r *Repository) ListPromotions(ctx context.Context) ([]models.Promotion, error) {
	var promos []models.Promotion
	if err := r.DB.WithContext(ctx).Order("id asc").Find(&promos).Error; err != nil {
		return nil, errors.Wrap(err, "list promotions")
	}
	return promos, nil
}

func (r *Repository) SetPromotionActive(ctx context.Context, id uint, active bool) error {
	res := r.DB.WithContext(ctx).Model(&models.Promotion{}).Where("id = ?", id).Update("is_active", active)
	if res.Error != nil {
		return errors.Wrap(res.Error, "toggle promotion")
	}
	if res.RowsAffected == 0 {
		// MySQL reports 0 rows when the value did not change
		if _, err := r.GetPromotion(ctx, id); err != nil {
			return err
		}
	}
	return nil
}

func (r *Repository) DeletePromotion(ctx context.Context, id uint) error {
	res := r.DB.WithContext(ctx).Delete(&models.Promotion{}, id)
	if res.Error != nil {
		return errors.Wrap(res.Error, "delete promotion")
	}
	if res.RowsAffected == 0 {
		return errors.Wrap(apperr.ErrNotFound, "promotion")
	}
	if err := r.DB.WithContext(ctx).Where("promotion_id = ?", id).Delete(&models.ProductPromotion{}).Error; err != nil {
		return errors.Wrap(err, "delete promotion links")
	}
	return nil
}

func (r *Repository) LinkProduct(ctx context.Context, promotionID, productID uint) error {
	if _, err := r.GetPromotion(ctx, promotionID); err != nil {
		return err
	}
	if _, err := r.GetProduct(ctx, productID); err != nil {
		return err
	}
	link := models.ProductPromotion{ProductID: productID, PromotionID: promotionID}
	err := r.DB.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&link).Error
	return errors.Wrap(err, "link product to promotion")
}

func (r *Repository) UnlinkProduct(ctx context.Context, promotionID, productID uint) error {
	err := r.DB.WithContext(ctx).
		Where("product_id = ? AND promotion_id = ?", productID, promotionID).
		Delete(&models.ProductPromotion{}).Error
	return errors.Wrap(err, "unlink product from promotion")
}

func (r *Repository) ActivePromotionsForProduct(ctx context.Context, productID uint, at time.Time) ([]models.Promotion, error) {
	var promos []models.Promotion
	err := r.DB.WithContext(ctx).
		Joins("JOIN product_promotions ON product_promotions.promotion_id = promotions.id").
		Where("product_promotions.product_id = ?", productID).
		Where("promotions.is_active = ? AND promotions.start_date <= ? AND promotions.end_date >= ?", true, at, at).
		Order("promotions.id asc").
		Find(&promos).Error
	if err != nil {
		return nil, errors.Wrap(err, "load active promotions")
	}
	return promos, nil
}

// --- sales ---

func (r *Repository) CreateSale(ctx context.Context, s *models.Sale) error {
	return errors.Wrap(r.DB.WithContext(ctx).Create(s).Error, "create sale")
}

func (r *Repository) GetSale(ctx context.Context, id uint) (*models.Sale, error) {
	var s models.Sale
	if err := r.DB.WithContext(ctx).First(&s, id).Error; err != nil {
		return nil, notFound(err, "sale")
	}
	return &s, nil
}

func (r *Repository) ListSales(ctx context.Context, limit int) ([]models.Sale, error) {
	var sales []models.Sale
	err := r.DB.WithContext(ctx).Order("sale_date desc, id desc").Limit(store.ClampLimit(limit)).Find(&sales).Error
	if err != nil {
		return nil, errors.Wrap(err, "list sales")
	}
	return sales, nil
}

func (r *Repository) DeleteSale(ctx context.Context, id uint) error {
	res := r.DB.WithContext(ctx).Delete(&models.Sale{}, id)
	if res.Error != nil {
		return errors.Wrap(res.Error, "delete sale")
	}
	if res.RowsAffected == 0 {
		return errors.Wrap(apperr.ErrNotFound, "sale")
	}
	return nil
}

// --- movements ---

func (r *Repository) CreateMovement(ctx context.Context, m *models.StockMovement) error {
	return errors.Wrap(r.DB.WithContext(ctx).Create(m).Error, "create stock movement")
}

func (r *Repository) ListMovements(ctx context.Context, productID uint, limit int) ([]models.StockMovement, error) {
	var movements []models.StockMovement
	err := r.DB.WithContext(ctx).
		Where("product_id = ?", productID).
		Order("id desc").
		Limit(store.ClampLimit(limit)).
		Find(&movements).Error
	if err != nil {
		return nil, errors.Wrap(err, "list stock movements")
	}
	return movements, nil
}

func (r *Repository) FindMovementByReference(ctx context.Context, refType string, refID uint, movementType models.MovementType) (*models.StockMovement, error) {
	var m models.StockMovement
	err := r.DB.WithContext(ctx).
		Where("reference_type = ? AND reference_id = ? AND movement_type = ?", refType, refID, movementType).
		Order("id asc").
		First(&m).Error
	if err != nil {
		return nil, notFound(err, "stock movement")
	}
	return &m, nil
}

// --- audit ---

func (r *Repository) CreateAuditLog(ctx context.Context, entry *models.AuditLog) error {
	return errors.Wrap(r.DB.WithContext(ctx).Create(entry).Error, "create audit log")
}

func (r *Repository) ListAuditLogs(ctx context.Context, limit int) ([]models.AuditLog, error) {
	var logs []models.AuditLog
	if err := r.DB.WithContext(ctx).Order("id desc").Limit(store.ClampLimit(limit)).Find(&logs).Error; err != nil {
		return nil, errors.Wrap(err, "list audit logs")
	}
	return logs, nil
}

func (r *Repository) DeleteAuditLogsExcept(ctx context.Context, keepID uint) (int64, error) {
	res := r.DB.WithContext(ctx).Where("id <> ?", keepID).Delete(&models.AuditLog{})
	if res.Error != nil {
		return 0, errors.Wrap(res.Error, "purge audit logs")
	}
	return res.RowsAffected, nil
}

// --- incidents ---

func (r *Repository) CreateIncident(ctx context.Context, inc *models.Incident) error {
	return errors.Wrap(r.DB.WithContext(ctx).Create(inc).Error, "create incident")
}

func (r *Repository) ListIncidents(ctx context.Context, limit int) ([]models.Incident, error) {
	var incidents []models.Incident
	if err := r.DB.WithContext(ctx).Order("id desc").Limit(store.ClampLimit(limit)).Find(&incidents).Error; err != nil {
		return nil, errors.Wrap(err, "list incidents")
	}
	return incidents, nil
}

// --- users ---

func (r *Repository) CreateUser(ctx context.Context, u *models.User) error {
	return errors.Wrap(r.DB.WithContext(ctx).Create(u).Error, "create user")
}

func (r *Repository) FindUserByUsername(ctx context.Context, username string) (*models.User, error) {
	var u models.User
	if err := r.DB.WithContext(ctx).Where("username = ?", username).First(&u).Error; err != nil {
		return nil, notFound(err, "user")
	}
	return &u, nil
}
