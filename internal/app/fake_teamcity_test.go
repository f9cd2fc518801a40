package app

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

// fakeTeamCityRoutes serve App_Build, which consumes Lib.Core, and
// Lib_Build, which publishes it, plus one JIRA issue below /jira.
var fakeTeamCityRoutes = map[string]string{
	"/app/rest/buildTypes": `{"buildType":[
		{"id":"App_Build","name":"App","projectId":"Platform","projectName":"Platform"},
		{"id":"Lib_Build","name":"Lib","projectId":"Platform","projectName":"Platform"}]}`,
	"/app/rest/buildTypes/id:App_Build": `{"id":"App_Build","name":"App","project":{"id":"Platform","name":"Platform"}}`,
	"/app/rest/buildTypes/id:Lib_Build": `{"id":"Lib_Build","name":"Lib","project":{"id":"Platform","name":"Platform"}}`,
	"/app/rest/builds?buildType:(id:App_Build),running:any,count:1000": `{"build":[
		{"id":2,"number":"11","buildTypeId":"App_Build","status":"SUCCESS","state":"finished"},
		{"id":1,"number":"10","buildTypeId":"App_Build","status":"SUCCESS","state":"finished"}]}`,
	"/app/rest/builds?buildType:(id:Lib_Build),running:any,count:1000": `{"build":[
		{"id":12,"number":"2.0.0","buildTypeId":"Lib_Build","status":"SUCCESS","state":"finished"},
		{"id":11,"number":"1.0.0","buildTypeId":"Lib_Build","status":"SUCCESS","state":"finished"}]}`,
	"/app/rest/builds?buildType:(id:App_Build),running:true":                           `{"count":0}`,
	"/app/rest/builds?buildType:(id:App_Build),status:SUCCESS,state:finished,count:1": `{"build":[{"id":2,"number":"11"}]}`,
	"/app/rest/builds?buildType:(id:Lib_Build),status:SUCCESS,state:finished,count:1": `{"build":[{"id":12,"number":"2.0.0"}]}`,
	"/app/rest/changes?build:(id:2)":  `{"change":[{"id":20}]}`,
	"/app/rest/changes?build:(id:12)": `{"change":[{"id":40}]}`,
	"/app/rest/changes/id:20":         `{"id":20,"version":"a1","username":"dev","comment":"PROJ-20 bump Lib.Core"}`,
	"/app/rest/changes/id:40":         `{"id":40,"version":"b2","username":"lib-dev","comment":"PROJ-40 faster parser"}`,
	"/app/rest/builds/id:12/artifacts/children/": `{"file":[
		{"name":"Lib.Core.2.0.0.nupkg"},{"name":"Lib.Core.2.0.0.symbols.nupkg"},{"name":"build.log"}]}`,
	"/jira/rest/api/2/issue/PROJ-20": `{"key":"PROJ-20","fields":{"summary":"Bump Lib.Core","status":{"name":"Done"},"issuetype":{"name":"Task"}}}`,
}

var fakeNuGetFiles = map[string]string{
	"/repository/download/App_Build/1:id/.teamcity/nuget/nuget.xml": nugetXML(map[string]string{"Lib.Core": "1.0.0"}),
	"/repository/download/App_Build/2:id/.teamcity/nuget/nuget.xml": nugetXML(map[string]string{"Lib.Core": "2.0.0", "Newtonsoft.Json": "13.0.3"}),
}

func nugetXML(packages map[string]string) string {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?><nuget-dependencies><packages>`)
	for id, version := range packages {
		fmt.Fprintf(&b, `<package id="%s" version="%s" />`, id, version)
	}
	b.WriteString(`</packages></nuget-dependencies>`)
	return b.String()
}

func newFakeTeamCity(t *testing.T) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := strings.TrimPrefix(r.URL.Path, "/guestAuth")
		if body, ok := fakeNuGetFiles[path]; ok {
			_, _ = w.Write([]byte(body))
			return
		}
		key := path
		if locator := r.URL.Query().Get("locator"); locator != "" {
			key += "?" + locator
		}
		body, ok := fakeTeamCityRoutes[key]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)
	return server
}
