// Package domain contains the star-schema models of the opinion warehouse.
package domain

// DimCliente is the client dimension keyed by the normalized client id.
type DimCliente struct {
	IDCliente string `gorm:"column:id_cliente;primaryKey;type:varchar(50)"`
	Nombre    string `gorm:"column:nombre;type:varchar(200);not null"`
	Email     string `gorm:"column:email;type:varchar(200)"`
}

// TableName sets the database table name.
func (DimCliente) TableName() string { return "dim_cliente" }

// DimProducto is the product dimension keyed by the normalized product id.
type DimProducto struct {
	IDProducto     string   `gorm:"column:id_producto;primaryKey;type:varchar(50)"`
	NombreProducto string   `gorm:"column:nombre_producto;type:varchar(200);not null"`
	Categoria      string   `gorm:"column:categoria;type:varchar(100)"`
	Precio         *float64 `gorm:"column:precio;type:numeric(10,2)"`
}

// TableName sets the database table name.
func (DimProducto) TableName() string { return "dim_producto" }

// DimFecha is the calendar dimension. IDFecha is the YYYYMMDD date key.
type DimFecha struct {
	IDFecha   int    `gorm:"column:id_fecha;primaryKey;autoIncrement:false"`
	Anio      int    `gorm:"column:anio;not null"`
	Mes       int    `gorm:"column:mes;not null"`
	Trimestre int    `gorm:"column:trimestre;not null"`
	NombreMes string `gorm:"column:nombre_mes;type:varchar(20);not null"`
}

// TableName sets the database table name.
func (DimFecha) TableName() string { return "dim_fecha" }

// DimFuente is the source dimension. Names are unique; ids are generated by the store.
type DimFuente struct {
	IDFuente     int64  `gorm:"column:id_fuente;primaryKey;autoIncrement"`
	NombreFuente string `gorm:"column:nombre_fuente;type:varchar(100);not null;uniqueIndex:ux_dim_fuente_nombre"`
}

// TableName sets the database table name.
func (DimFuente) TableName() string { return "dim_fuente" }

// FactOpinion is one loaded opinion. (IDOriginal, FuenteOrigen) identifies the source record.
type FactOpinion struct {
	IDOpinion                int64   `gorm:"column:id_opinion;primaryKey;autoIncrement"`
	IDCliente                string  `gorm:"column:id_cliente;type:varchar(50);not null;index"`
	IDProducto               string  `gorm:"column:id_producto;type:varchar(50);not null;index"`
	IDFecha                  int     `gorm:"column:id_fecha;not null;index"`
	IDFuente                 int64   `gorm:"column:id_fuente;not null;index"`
	ClasificacionSentimiento string  `gorm:"column:clasificacion_sentimiento;type:varchar(20);not null"`
	PuntajeSatisfaccion      float64 `gorm:"column:puntaje_satisfaccion;type:numeric(3,2);not null"`
	Comentario               string  `gorm:"column:comentario;type:text"`
	CanalOriginal            string  `gorm:"column:canal_original;type:varchar(50)"`
	IDOriginal               *string `gorm:"column:id_original;type:varchar(100);uniqueIndex:ux_fact_opiniones_original"`
	FuenteOrigen             string  `gorm:"column:fuente_origen;type:varchar(20);not null;uniqueIndex:ux_fact_opiniones_original"`

	Cliente  DimCliente  `gorm:"foreignKey:IDCliente;references:IDCliente"`
	Producto DimProducto `gorm:"foreignKey:IDProducto;references:IDProducto"`
	Fecha    DimFecha    `gorm:"foreignKey:IDFecha;references:IDFecha"`
	Fuente   DimFuente   `gorm:"foreignKey:IDFuente;references:IDFuente"`
}

// TableName sets the database table name.
func (FactOpinion) TableName() string { return "fact_opiniones" }
