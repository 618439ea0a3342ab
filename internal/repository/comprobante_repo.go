package repository

import (
	"context"

	"facturador/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ComprobanteRepository interface {
	Create(ctx context.Context, c *model.Comprobante) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Comprobante, error)
	FindByNumero(ctx context.Context, tipo model.TipoComprobante, puntoVenta int, numero int64) (*model.Comprobante, error)
	Update(ctx context.Context, c *model.Comprobante) error
}

type comprobanteRepo struct{ db *gorm.DB }

func NewComprobanteRepository(db *gorm.DB) ComprobanteRepository {
	return &comprobanteRepo{db: db}
}

func (r *comprobanteRepo) Create(ctx context.Context, c *model.Comprobante) error {
	return r.db.WithContext(ctx).Create(c).Error
}

func (r *comprobanteRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.Comprobante, error) {
	var c model.Comprobante
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&c).Error
	return &c, err
}

func (r *comprobanteRepo) FindByNumero(ctx context.Context, tipo model.TipoComprobante, puntoVenta int, numero int64) (*model.Comprobante, error) {
	var c model.Comprobante
	err := r.db.WithContext(ctx).
		Where("tipo = ? AND punto_venta = ? AND numero = ?", tipo, puntoVenta, numero).
		First(&c).Error
	return &c, err
}

func (r *comprobanteRepo) Update(ctx context.Context, c *model.Comprobante) error {
	return r.db.WithContext(ctx).Save(c).Error
}
