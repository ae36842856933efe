package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/smallbiznis/opinionetl/internal/config"
	"github.com/smallbiznis/opinionetl/internal/migration"
	"github.com/smallbiznis/opinionetl/internal/warehouse"
	warehousedomain "github.com/smallbiznis/opinionetl/internal/warehouse/domain"
	warehouseservice "github.com/smallbiznis/opinionetl/internal/warehouse/service"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

func loadDimensionsCmd() *cobra.Command {
	var clientsPath, productsPath string

	cmd := &cobra.Command{
		Use:   "load-dimensions",
		Short: "Bulk upsert the client and product dimensions from CSV files",
		RunE: func(cmd *cobra.Command, args []string) error {
			if clientsPath == "" && productsPath == "" {
				return errors.New("at least one of --clients or --products is required")
			}

			var (
				clients  []warehousedomain.DimCliente
				products []warehousedomain.DimProducto
				err      error
			)
			if clientsPath != "" {
				if clients, err = readCSVFile(clientsPath, warehouseservice.ReadClientsCSV); err != nil {
					return fmt.Errorf("read clients: %w", err)
				}
			}
			if productsPath != "" {
				if products, err = readCSVFile(productsPath, warehouseservice.ReadProductsCSV); err != nil {
					return fmt.Errorf("read products: %w", err)
				}
			}

			var (
				loader *warehouseservice.DimensionLoader
				log    *zap.Logger
			)
			app := fx.New(
				infrastructure(config.Load()),
				migration.Module,
				warehouse.Module,
				fx.Populate(&loader, &log),
			)
			ctx := cmd.Context()
			if err := app.Start(ctx); err != nil {
				return err
			}
			defer func() {
				_ = app.Stop(context.WithoutCancel(ctx))
			}()

			if len(clients) > 0 {
				n, err := loader.LoadClients(ctx, clients)
				if err != nil {
					return fmt.Errorf("load clients: %w", err)
				}
				log.Info("dimensions.clients.loaded", zap.Int("rows", n))
			}
			if len(products) > 0 {
				n, err := loader.LoadProducts(ctx, products)
				if err != nil {
					return fmt.Errorf("load products: %w", err)
				}
				log.Info("dimensions.products.loaded", zap.Int("rows", n))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&clientsPath, "clients", "", "CSV file of clients (IdCliente,Nombre,Email)")
	cmd.Flags().StringVar(&productsPath, "products", "", "CSV file of products (IdProducto,Nombre,Categoria,Precio)")
	return cmd
}

func readCSVFile[T any](path string, read func(io.Reader) ([]T, error)) ([]T, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return read(f)
}
