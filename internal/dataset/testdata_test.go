package dataset

import (
	"testing/fstest"
)

const unitsFC = `{"type":"FeatureCollection","features":[
 {"type":"Feature","properties":{"identificador":"UP-1","nombre_up":"Sede comunal","estado":"en ejecucion","presupuesto_base":"$ 1.200.000.000","avance_obra":"45,5%","comuna_corregimiento":"COMUNA 3","fecha_inicio":"2024-02-01"},"geometry":{"type":"Point","coordinates":[3.45,-76.53]}},
 {"type":"Feature","properties":{"identificador":"UP-2","nombre":"Parque","estado_unidad_proyecto":"Terminado","ppto_base":350000000},"geometry":{"type":"Point","coordinates":[-76.52,3.44]}},
 {"type":"Feature","properties":{"nombre":"Sin ubicación","estado":"Suspendido"},"geometry":{"type":"Point","coordinates":[10,10]}},
 {"type":"Feature","properties":{"nombre":"Sin geometría"},"geometry":null}
]}`

const roadsFC = `{"type":"FeatureCollection","features":[
 {"type":"Feature","properties":{"identificador":"UP-1","nombre_up":"Duplicado por id"},"geometry":{"type":"Point","coordinates":[-76.53,3.45]}},
 {"type":"Feature","properties":{"nombre_up":"Vía A","avance_fisico_obra":80},"geometry":{"type":"LineString","coordinates":[[-76.5,3.4],[-76.49,3.41]]}},
 {"type":"Feature","properties":{"nombre_up":"Vía A copia"},"geometry":{"type":"LineString","coordinates":[[-76.50000000001,3.4],[-76.49,3.41]]}}
]}`

const comunasFC = `{"type":"FeatureCollection","features":[
 {"type":"Feature","properties":{"nombre":"Comuna 1","comuna":"1"},"geometry":{"type":"Polygon","coordinates":[[[-76.6,3.4],[-76.5,3.4],[-76.5,3.5],[-76.6,3.5],[-76.6,3.4]]]}}
]}`

const incidentsFC = `{"type":"FeatureCollection","features":[
 {"type":"Feature","properties":{"categoria":"Hurto","peso":3},"geometry":{"type":"Point","coordinates":[-76.53,3.45]}},
 {"type":"Feature","properties":{"categoria":"Riña"},"geometry":{"type":"Point","coordinates":[3.46,-76.54]}},
 {"type":"Feature","properties":{"categoria":"Área"},"geometry":{"type":"LineString","coordinates":[[-76.5,3.4],[-76.49,3.41]]}}
]}`

const budgetJSON = `[
 {"bpin":"2020760010001","periodo_corte":"2024-06","ppto_inicial":"1.000.000","ppto_modificado":1500000,"ejecucion":750000,"pagos":500000},
 {"bpin":"2020760010001","periodo_corte":"2024-03","ppto_inicial":1000000,"ppto_modificado":1000000,"ejecucion":100000},
 {"nota":"fila vacía"}
]`

func testFS() fstest.MapFS {
	return fstest.MapFS{
		"unidades_proyecto/equipamientos.geojson":                {Data: []byte(unitsFC)},
		"unidades_proyecto/infraestructura_vial.geojson":         {Data: []byte(roadsFC)},
		"cartografia_base/comunas_corregimientos.geojson":        {Data: []byte(comunasFC)},
		"cartografia_base/barrios_veredas.geojson":               {Data: []byte(`{"type":"Feature"}`)},
		"centros_gravedad/centros_gravedad_unificado.geojson":    {Data: []byte(incidentsFC)},
		"ejecucion_presupuestal/movimientos_presupuestales.json": {Data: []byte(budgetJSON)},
		"ejecucion_presupuestal/ejecucion_presupuestal.json":     {Data: []byte(`{"data":[]}`)},
	}
}
