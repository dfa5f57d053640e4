package models

// Cliente is a record from the client directory, keyed by CUIT.
type Cliente struct {
	Cuit            string  `json:"cuit"`
	Nombre          string  `json:"nombre"`
	CategoriaFiscal string  `json:"categoria_fiscal,omitempty"`
	DeudaHonorarios float64 `json:"deuda_honorarios"`
	PlanPagos       string  `json:"plan_pagos,omitempty"`
	EstadoGeneral   string  `json:"estado_general,omitempty"`
}

// ClienteLookup is the result of a directory lookup by CUIT.
type ClienteLookup struct {
	Exists bool     `json:"exists"`
	Data   *Cliente `json:"data,omitempty"`
}
