package main

import (
	"context"
	"net/http"
	"os"

	"steward/advisory"
	"steward/bizerror"
	"steward/domain"
	"steward/event"
	"steward/governance"
	"steward/infra/tracing"
	"steward/initiative"
	"steward/misc"
	"steward/persistence"
	"steward/servehttp"
	"steward/storage"

	"github.com/gin-gonic/gin"
)

func main() {
	misc.Log.Info("service start")

	dbConfig, err := persistence.ParseDatabaseConfigFromEnv()
	if err != nil {
		misc.Log.Fatalf("parse database config failed %v", err)
	}

	// create database (no conflict)
	if dbConfig.DriverType == "mysql" {
		if err := persistence.PrepareMysqlDatabase(dbConfig.DriverArgs); err != nil {
			misc.Log.Fatalf("failed to prepare database %v", err)
		}
	}

	// connect database
	ds := &persistence.DataSourceManager{DatabaseConfig: dbConfig}
	if err := ds.Start(); err != nil {
		misc.Log.Fatalf("database connection failed %v", err)
	}
	defer ds.Stop()
	persistence.ActiveDataSourceManager = ds

	// database migration (race condition)
	err = ds.GormDB(context.Background()).AutoMigrate(&domain.Workflow{}, &domain.Stage{}, &domain.Approval{},
		&domain.Annotation{}, &event.EventRecord{}).Error
	if err != nil {
		misc.Log.Fatalf("database migration failed %v", err)
	}

	tracingCloser, err := tracing.InitTracer(misc.GetServiceName())
	if err != nil {
		misc.Log.Fatalf("tracer initialization failed %v", err)
	}
	defer func() {
		_ = tracingCloser.Close()
	}()

	engine := gin.Default()
	engine.Use(tracing.TracingIngress(), bizerror.ErrorHandling())
	engine.GET("/", func(c *gin.Context) {
		c.String(http.StatusOK, misc.GetServiceName())
	})
	engine.GET("/health", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	store := storage.NewGormStore(ds)
	workflowEngine := governance.NewEngine(store)

	var gateway advisory.Gateway
	if advisoryURL := os.Getenv("ADVISORY_SERVICE_URL"); advisoryURL != "" {
		gateway = advisory.NewHTTPGateway(advisoryURL)
	}
	advisoryService := advisory.NewService(gateway, store)

	var initiatives initiative.Repository
	if initiativeURL := os.Getenv("INITIATIVE_SERVICE_URL"); initiativeURL != "" {
		initiatives = initiative.NewHTTPRepository(initiativeURL)
	}

	servehttp.RegisterGovernanceHandler(engine, workflowEngine, initiatives)
	servehttp.RegisterAdvisoryHandler(engine, advisoryService)
	servehttp.RegisterTierHandler(engine)

	servehttp.StartHTTPServer(engine)
}
