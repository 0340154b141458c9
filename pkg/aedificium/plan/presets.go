package plan

// presets are plans searched offline for the contest problem sizes. They
// are not door-balanced; they were selected for low solve latency over a
// large sample of random maps.
var presets = map[int]string{
	24: "053421124355003145223044132102540153351203445023114200554324125133051042" +
		"215014033152443520411325530244002234511032054154230134552103501221433402" +
		"532514310044152332500144551240530123153410521354220330420524115043021334" +
		"514011522400543355322502431104320154423513402104531230554420011342541350" +
		"314220511225053310324405552341300214450322545125330150043123141012421453" +
		"202513005434045013322443102352331551412002403415510035111204255404452032",
	30: "413022551403315200442351124530532105441250342013450431221500235401332245" +
		"541100524301142035531432234405215311350240015425104334025123304521120534" +
		"103522445503114230032542135431452051002415012340523321554433021451132041" +
		"025533014400351220440115324321342250451305502315412031045522433500142534" +
		"115203442231104350310540221435132441500553020145133425523012412033443004" +
		"231254411023052214500135410325345320121545042102113352405514315340154304" +
		"422003355523411201445331322002514054225105033004323315550112134421441352" +
		"532400511024124025405311304432221235",
}
