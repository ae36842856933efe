package service

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	transform "github.com/smallbiznis/opinionetl/internal/transform/service"
	"github.com/smallbiznis/opinionetl/internal/warehouse/domain"
)

// ReadClientsCSV parses a client master file with IdCliente, Nombre and Email columns.
func ReadClientsCSV(r io.Reader) ([]domain.DimCliente, error) {
	var out []domain.DimCliente
	err := readCSV(r, func(get func(...string) string) {
		id := get("idcliente", "id_cliente", "id")
		if id == "" {
			return
		}
		out = append(out, domain.DimCliente{
			IDCliente: transform.NormalizeClientID(id),
			Nombre:    get("nombre", "nombrecliente", "name"),
			Email:     get("email", "correo"),
		})
	})
	return out, err
}

// ReadProductsCSV parses a product master file with IdProducto, Nombre, Categoria and Precio columns.
func ReadProductsCSV(r io.Reader) ([]domain.DimProducto, error) {
	var out []domain.DimProducto
	err := readCSV(r, func(get func(...string) string) {
		id := get("idproducto", "id_producto", "id")
		if id == "" {
			return
		}
		row := domain.DimProducto{
			IDProducto:     transform.NormalizeProductID(id),
			NombreProducto: get("nombre", "nombreproducto", "nombre_producto", "name"),
			Categoria:      get("categoria", "categoría", "category"),
		}
		if price, err := strconv.ParseFloat(get("precio", "price"), 64); err == nil {
			row.Precio = &price
		}
		out = append(out, row)
	})
	return out, err
}

func readCSV(r io.Reader, each func(get func(...string) string)) error {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("read header: %w", err)
	}
	index := make(map[string]int, len(header))
	for i, name := range header {
		if i == 0 {
			name = strings.TrimPrefix(name, "\ufeff")
		}
		index[strings.ToLower(strings.TrimSpace(name))] = i
	}

	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		each(func(names ...string) string {
			for _, name := range names {
				if i, ok := index[name]; ok && i < len(row) {
					return strings.TrimSpace(row[i])
				}
			}
			return ""
		})
	}
}
